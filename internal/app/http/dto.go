package http

import "github.com/fardannozami/wa-multisession/internal/domain/session"

type InitSessionRequest struct {
	Force        bool `json:"force"`
	ClearSession bool `json:"clear_session"`
}

type StatusResponse struct {
	UserID    string            `json:"user_id"`
	Exists    bool              `json:"exists"`
	Connected bool              `json:"connected"`
	State     string            `json:"state"`
	Error     string            `json:"error,omitempty"`
	Code      string            `json:"code,omitempty"`
	Identity  *session.Identity `json:"identity,omitempty"`
}

type CodeResponse struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Image  string `json:"image,omitempty"`
}

type SendTextRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type SendTextResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type SendBulkRequest struct {
	Messages []SendTextRequest `json:"messages"`
}

type BulkResultResponse struct {
	To        string `json:"to"`
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SendBulkResponse struct {
	Sent    int                  `json:"sent"`
	Failed  int                  `json:"failed"`
	Results []BulkResultResponse `json:"results"`
}

type SendMediaRequest struct {
	To      string `json:"to"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type DisconnectRequest struct {
	ClearSession bool `json:"clear_session"`
}

type DisconnectResponse struct {
	Status  string `json:"status"`
	Tracked bool   `json:"tracked"`
}

type ContactResponse struct {
	JID          string `json:"jid,omitempty"`
	Number       string `json:"number"`
	Name         string `json:"name,omitempty"`
	PushName     string `json:"push_name,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Found        bool   `json:"found"`
}

type SessionsResponse struct {
	Count    int              `json:"count"`
	Sessions []StatusResponse `json:"sessions"`
}

type SessionsStreamResponse struct {
	Status   string           `json:"status"`
	Sessions []StatusResponse `json:"sessions,omitempty"`
}

func toStatusResponse(st session.Status) StatusResponse {
	return StatusResponse{
		UserID:    st.UserID,
		Exists:    st.Exists,
		Connected: st.Connected,
		State:     string(st.State),
		Error:     st.Error,
		Code:      st.Code,
		Identity:  st.Identity,
	}
}
