package db

import "time"

type NewItem struct {
	Id         string
	ObjectId   string
	ObjectType string
	Priority   int
}

type QueueItem struct {
	Id              string
	ObjectId        string
	ObjectType      string
	Status          string
	Attempts        int
	Priority        int
	CreatedAt       time.Time
	LastAttemptedAt *time.Time
}

type NewAuditEntry struct {
	ObjectId         string
	ObjectType       string
	Success          bool
	ProcessingTimeMs int64
	ErrorMessage     *string
}

type QueueStats struct {
	Pending      int
	Processing   int
	Completed    int
	Failed       int
	DeadLettered int
}
