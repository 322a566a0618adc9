package http

import (
	"net/http"
	"strings"

	"github.com/fardannozami/wa-multisession/internal/app/usecase"
	"github.com/gin-gonic/gin"
)

func (h *Handler) SendText(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	var req SendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "detail": err.Error()})
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.To == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and message are required"})
		return
	}

	out, err := h.sendUC.Execute(c.Request.Context(), usecase.SendTextInput{
		Session: session,
		To:      req.To,
		Message: req.Message,
	})
	if err != nil {
		writeError(c, "send text", err)
		return
	}

	c.JSON(http.StatusOK, SendTextResponse{
		Status:    out.Status,
		MessageID: out.MessageID,
		Timestamp: out.Timestamp.Unix(),
	})
}

func (h *Handler) SendBulk(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	var req SendBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "detail": err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}

	items := make([]usecase.BulkItem, 0, len(req.Messages))
	for _, m := range req.Messages {
		items = append(items, usecase.BulkItem{To: m.To, Message: strings.TrimSpace(m.Message)})
	}

	out, err := h.bulkUC.Execute(c.Request.Context(), session, items)
	if err != nil {
		writeError(c, "send bulk", err)
		return
	}

	results := make([]BulkResultResponse, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, BulkResultResponse{
			To:        r.To,
			Status:    r.Status,
			MessageID: r.MessageID,
			Error:     r.Error,
		})
	}

	c.JSON(http.StatusOK, SendBulkResponse{
		Sent:    out.Sent,
		Failed:  out.Failed,
		Results: results,
	})
}

func (h *Handler) SendMedia(c *gin.Context) {
	session, ok := sessionParam(c)
	if !ok {
		return
	}

	var req SendMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "detail": err.Error()})
		return
	}
	if req.To == "" || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and url are required"})
		return
	}

	out, err := h.mediaUC.Execute(c.Request.Context(), usecase.SendMediaInput{
		Session: session,
		To:      req.To,
		URL:     req.URL,
		Caption: req.Caption,
	})
	if err != nil {
		writeError(c, "send media", err)
		return
	}

	c.JSON(http.StatusOK, SendTextResponse{
		Status:    out.Status,
		MessageID: out.MessageID,
		Timestamp: out.Timestamp.Unix(),
	})
}
