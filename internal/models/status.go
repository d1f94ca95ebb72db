package models

// ItemStatus is the lifecycle state of a single work item.
// Transitions are strictly monotonic: queued -> running -> ok|error.
type ItemStatus string

const (
	ItemStatusQueued  ItemStatus = "queued"
	ItemStatusRunning ItemStatus = "running"
	ItemStatusOK      ItemStatus = "ok"
	ItemStatusError   ItemStatus = "error"
)

// Rank orders item statuses for monotonicity checks. Terminal states share
// the highest rank so neither can replace the other.
func (s ItemStatus) Rank() int {
	switch s {
	case ItemStatusQueued:
		return 0
	case ItemStatusRunning:
		return 1
	case ItemStatusOK, ItemStatusError:
		return 2
	default:
		return -1
	}
}

// IsTerminal returns true if the item has finished
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusOK || s == ItemStatusError
}

// GroupStatus is the aggregate state of a job group. It is a deterministic
// function of the group's item statuses and is only written by the
// aggregator after creation.
type GroupStatus string

const (
	GroupStatusQueued  GroupStatus = "queued"
	GroupStatusRunning GroupStatus = "running"
	GroupStatusDone    GroupStatus = "done" // all items finished, at least one ok
	GroupStatusError   GroupStatus = "error" // all items finished, zero ok
)

// IsTerminal returns true if the group has reached a final state
func (s GroupStatus) IsTerminal() bool {
	return s == GroupStatusDone || s == GroupStatusError
}

// IsActive returns true for groups still queued or in flight
func (s GroupStatus) IsActive() bool {
	return s == GroupStatusQueued || s == GroupStatusRunning
}

// ItemStatusCounts holds the per-status tallies the aggregator computes a
// group status from.
type ItemStatusCounts struct {
	Total int
	OK    int
	Error int
}

// Finished reports whether every item of the group has reached a terminal
// status. An empty group is never finished.
func (c ItemStatusCounts) Finished() bool {
	return c.Total > 0 && c.OK+c.Error == c.Total
}

// GroupStatusFor derives the group status from item counts per the
// aggregation rule: not finished -> running; finished with >=1 ok -> done;
// finished with 0 ok -> error.
func GroupStatusFor(c ItemStatusCounts) GroupStatus {
	if !c.Finished() {
		return GroupStatusRunning
	}
	if c.OK > 0 {
		return GroupStatusDone
	}
	return GroupStatusError
}
