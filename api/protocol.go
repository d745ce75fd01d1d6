package api

const postBodyMaxSize = 64 * 1024 // 64 KiB

// POST /:secret/api/plan response body
type planResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error,omitempty"`
}
