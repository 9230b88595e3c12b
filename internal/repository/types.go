package repository

import "time"

// OrderListFilter admin order list filter
type OrderListFilter struct {
	Page        int
	PageSize    int
	Status      string
	Priority    string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// StatusGuard is the row state a guarded status write expects to find.
// A zero UpdatedAt only pins the status.
type StatusGuard struct {
	Status    string
	UpdatedAt time.Time
}

// PriorityUpdate is a triage result written onto an order.
type PriorityUpdate struct {
	Priority          string
	Reasons           []string
	SuggestedDeadline *time.Time
	UpdatedAt         time.Time
}
