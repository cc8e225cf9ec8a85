package domain

import "time"

// SystemClock implements Clock with the wall clock, the implementation
// every production collaborator is constructed with. Tests use their own
// fake implementing the same one-method interface instead ("this
// is also the seam for tests").
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
