package models

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SplitPreviewRequest asks for the split a sale would get.
type SplitPreviewRequest struct {
	SaleAmount    float64  `json:"saleAmount" validate:"required,gt=0"`
	TotalReferred int      `json:"totalReferred" validate:"gte=0"`
	CustomRate    *float64 `json:"customRate,omitempty"`
}
