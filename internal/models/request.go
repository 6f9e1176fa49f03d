package models

import "encoding/json"

// OrderOptions is the shared options record applied to every file in one
// batch submission. Sent as a JSON form field alongside the files.
type OrderOptions struct {
	Quantity  int    `json:"quantity" example:"1"`
	PaperSize string `json:"paper_size" example:"A4"`
	ColorMode string `json:"color_mode" example:"bw"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" example:"completed"`
}

// SubscribeRequest carries the raw push subscription object from the
// browser. The payload is stored opaque; it is only checked to be a
// well-formed JSON object.
type SubscribeRequest struct {
	Subscription json.RawMessage `json:"subscription"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
