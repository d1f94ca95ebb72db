package models

// Event names pushed through the notification bus. The frontend
// pattern-matches on these tags.
const (
	EventGroupAdded   = "task_group_added"
	EventGroupStatus  = "task_group_status"
	EventItemStarted  = "task_item_started"
	EventItemFinished = "task_item_finished"
)

// TopicBroadcast receives every transition; owner-scoped topics receive the
// same events for the owner's groups only.
const TopicBroadcast = "broadcast"

// UserTopic returns the owner-scoped topic for an identity
func UserTopic(username string) string {
	return "user:" + username
}

// Envelope is the wire format delivered to subscribers
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
