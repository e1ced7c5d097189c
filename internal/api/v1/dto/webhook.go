package dto

// WebhookReceivedResponse acknowledges a processed webhook.
type WebhookReceivedResponse struct {
	Received bool `json:"received"`
}

// RevenueCatWebhookResponse acknowledges a mobile purchase webhook.
type RevenueCatWebhookResponse struct {
	Received bool    `json:"received"`
	UserID   string  `json:"user_id"`
	IsPro    bool    `json:"is_pro"`
	Status   *string `json:"status"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
