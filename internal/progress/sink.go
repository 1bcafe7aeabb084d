package progress

import "context"

// Sink receives batches of events from the Hub. Implementations must be
// safe for concurrent use and tolerate duplicate delivery on retry.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}
