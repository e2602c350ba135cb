package common

type NewItemResponse struct {
	Id string `json:"id"`
}

// EmptyQueueResponse is returned when a pass found nothing eligible.
type EmptyQueueResponse struct {
	Message        string `json:"message"`
	ItemsProcessed int    `json:"items_processed"`
}

// QueueStatsResponse reports per-status depths. DeadLettered counts failed items
// that exhausted their retry budget and will never be selected again.
type QueueStatsResponse struct {
	Pending      int `json:"pending"`
	Processing   int `json:"processing"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
	Total        int `json:"total"`
}

type ErrorResponse struct {
	Code string `json:"code,omitempty"`
}
