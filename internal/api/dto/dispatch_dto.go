package dto

// DispatchRequest payload for a custom webhook event.
type DispatchRequest struct {
	Event   string         `json:"event"`
	Subject string         `json:"subject"`
	Payload map[string]any `json:"payload"`
}

// SendMessageRequest payload for the messaging proxy.
type SendMessageRequest struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}
