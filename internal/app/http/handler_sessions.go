package http

import (
	"net/http"

	"github.com/fardannozami/wa-multisession/internal/app/usecase"
	"github.com/gin-gonic/gin"
)

func (h *Handler) InitSession(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	var req InitSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "detail": err.Error()})
			return
		}
	}

	st, err := h.initUC.Execute(c.Request.Context(), usecase.InitSessionInput{
		Session:      session,
		Force:        req.Force,
		ClearSession: req.ClearSession,
	})
	if err != nil {
		writeError(c, "init session", err)
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(*st))
}

func (h *Handler) Status(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(h.statusUC.Execute(session)))
}

func (h *Handler) Disconnect(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	var req DisconnectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "detail": err.Error()})
			return
		}
	}

	tracked := h.discUC.Execute(c.Request.Context(), session, req.ClearSession)
	c.JSON(http.StatusOK, DisconnectResponse{Status: "disconnected", Tracked: tracked})
}

func (h *Handler) Contact(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	out, err := h.contactUC.Execute(c.Request.Context(), session, c.Param("phone"))
	if err != nil {
		writeError(c, "get contact", err)
		return
	}

	c.JSON(http.StatusOK, ContactResponse{
		JID:          out.JID,
		Number:       out.Number,
		Name:         out.Name,
		PushName:     out.PushName,
		BusinessName: out.BusinessName,
		Found:        out.Found,
	})
}

func (h *Handler) ListSessions(c *gin.Context) {
	items := h.sessUC.Execute()

	sessions := make([]StatusResponse, 0, len(items))
	for _, item := range items {
		sessions = append(sessions, toStatusResponse(item))
	}

	c.JSON(http.StatusOK, SessionsResponse{
		Count:    len(sessions),
		Sessions: sessions,
	})
}
