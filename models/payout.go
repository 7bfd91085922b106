package models

// PayoutTransferRequest asks the payment platform to move a member's share to
// their payout account.
type PayoutTransferRequest struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	DestinationID  string `json:"destination_id"`
	IdempotenceKey string `json:"idempotence_key"`
	Notes          string `json:"notes,omitempty"`
}

// PayoutResponse is the platform's standard response envelope.
type PayoutResponse struct {
	Status bool                   `json:"status"`
	Code   interface{}            `json:"code"`   // string or null
	Dialog interface{}            `json:"dialog"` // string, object or null
	Data   map[string]interface{} `json:"data"`
}
