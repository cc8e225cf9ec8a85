// Package domain holds mcpmuxd's entities, value objects, domain events,
// and the narrow capability interfaces its services are built against.
// Nothing in here reaches into storage, transport, or the event bus
// directly — those are injected by the packages that implement these
// interfaces ("dynamic collaborator injection").
package domain

import "time"

// Space is a named configuration scope containing installed servers,
// feature sets, and grants.
type Space struct {
	ID          string
	Name        string
	Icon        string
	Description string
	IsDefault   bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
