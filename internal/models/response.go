package models

import "time"

type OrderResponse struct {
	ID        string    `json:"order_id"`
	FileName  string    `json:"file_name"`
	FileURL   string    `json:"file_url,omitempty"`
	Quantity  int       `json:"quantity"`
	PaperSize string    `json:"paper_size"`
	ColorMode string    `json:"color_mode"`
	TotalCost float64   `json:"total_cost"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
}

// SubmitResponse summarizes one batch submission. Created counts the files
// that became orders; Errors carries a per-file entry for each that did
// not, so a partial failure is visible without failing the batch.
type SubmitResponse struct {
	Created int             `json:"created"`
	Orders  []OrderResponse `json:"orders"`
	Errors  []FileErrorInfo `json:"errors,omitempty"`
}

type FileErrorInfo struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Stage    string `json:"stage"`
}

type UpdateOrderStatusResponse struct {
	ID     string `json:"order_id"`
	Status string `json:"status"`
}

type SubscribeResponse struct {
	Success bool `json:"success"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
