package http

import (
	"net/http"
	"time"

	"github.com/fardannozami/wa-multisession/internal/app/usecase"
	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCode(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	out, err := h.codeUC.Execute(c.Request.Context(), session)
	if err != nil {
		writeError(c, "get code", err)
		return
	}

	c.JSON(http.StatusOK, h.codeResponse(out))
}

// CodeStream pushes the code of a session as server-sent events until the
// session is connected or the client goes away.
func (h *Handler) CodeStream(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastStatus := ""
	lastCode := ""

	send := func() bool {
		out, err := h.codeUC.Execute(ctx, session)
		if err != nil {
			c.SSEvent("qr", gin.H{"status": "failed", "detail": err.Error()})
			c.Writer.Flush()
			return true
		}

		if out.Status != lastStatus || out.Code != lastCode {
			c.SSEvent("qr", h.codeResponse(out))
			c.Writer.Flush()
			lastStatus = out.Status
			lastCode = out.Code
		}

		return out.Status == usecase.CodeConnected
	}

	if send() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if send() {
				return
			}
		}
	}
}

func (h *Handler) codeResponse(out *usecase.GetCodeOutput) CodeResponse {
	resp := CodeResponse{Status: out.Status, Code: out.Code}
	if out.Code != "" && h.renderQR != nil {
		image, err := h.renderQR(out.Code)
		if err != nil {
			h.log.Warnf("render qr: %v", err)
		}
		resp.Image = image
	}
	return resp
}
