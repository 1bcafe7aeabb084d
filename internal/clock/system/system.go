// Package system implements pipeline.Clock with the wall clock.
package system

import "time"

// Clock returns the current UTC time.
type Clock struct{}

// New creates a system clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
