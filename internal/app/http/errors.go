package http

import (
	"net/http"

	"github.com/fardannozami/wa-multisession/internal/domain/session"
	"github.com/gin-gonic/gin"
)

// writeError answers with the status matching the error's kind.
func writeError(c *gin.Context, op string, err error) {
	body := gin.H{"error": op + " failed", "detail": err.Error(), "kind": session.KindOf(err)}

	status := http.StatusInternalServerError
	switch session.KindOf(err) {
	case session.KindAlreadyExists:
		status = http.StatusConflict
		body["hint"] = "session already exists, retry with force=true to reconnect"
	case session.KindNotFound:
		status = http.StatusNotFound
		body["hint"] = "initialize the session first"
	case session.KindNotReady:
		status = http.StatusConflict
		body["hint"] = "session is not connected, check its status"
	case session.KindTransport:
		status = http.StatusBadGateway
	case session.KindInvalidInput:
		status = http.StatusBadRequest
	}

	c.JSON(status, body)
}
