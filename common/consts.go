package common

const (
	// queue item statuses:
	PendingStatus    = "pending"
	ProcessingStatus = "processing"
	CompletedStatus  = "completed"
	FailedStatus     = "failed"

	// indexable entity kinds:
	OfferObjectType  = "offer"
	FlightObjectType = "flight"
	UserObjectType   = "user"
	CrewObjectType   = "crew"

	// trigger sources:
	ManualTriggerSource    = "manual"
	SchedulerTriggerSource = "scheduler"

	// failure reason for items recovered from a crashed pass:
	StaleProcessingFailureReason = "processing timed out: recovered from stale state"

	NoEligibleItemsMessage = "No items in the embedding queue"
)

var (
	SupportedObjectTypes = map[string]bool{
		OfferObjectType:  true,
		FlightObjectType: true,
		UserObjectType:   true,
		CrewObjectType:   true,
	}
)
