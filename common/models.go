package common

// TriggerRequest is the body of a manual processing-pass trigger. All fields are
// optional: a missing batchSize falls back to the configured default, and
// "immediate" is advisory only (the pass always runs right away).
type TriggerRequest struct {
	BatchSize int    `json:"batchSize"`
	Immediate bool   `json:"immediate"`
	Source    string `json:"source"`
}

// NewItemRequest enqueues one entity for (re-)indexing.
type NewItemRequest struct {
	ObjectId   string `json:"object_id"`
	ObjectType string `json:"object_type"`
	Priority   int    `json:"priority"`
}

// ItemResult is the per-item outcome of one processing attempt.
type ItemResult struct {
	Id               string `json:"id"`
	ObjectId         string `json:"object_id"`
	ObjectType       string `json:"object_type"`
	Success          bool   `json:"success"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Error            string `json:"error,omitempty"`
}

// BatchReport aggregates one processing pass.
type BatchReport struct {
	Message                     string       `json:"message"`
	SuccessCount                int          `json:"success_count"`
	FailureCount                int          `json:"failure_count"`
	SuccessRate                 float64      `json:"success_rate"`
	TotalProcessingTimeMs       int64        `json:"total_processing_time_ms"`
	AverageItemProcessingTimeMs int64        `json:"average_item_processing_time_ms"`
	Results                     []ItemResult `json:"results"`
}
