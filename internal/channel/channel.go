// Package channel wraps the external messaging provider behind a single
// send capability. The dispatch engine only ever sees this interface; the
// webhook client (in-process credentials) and the bridge client (remote
// credentials) are interchangeable implementations.
package channel

import "context"

// Client delivers one message to one channel address. A returned error is
// a per-send delivery failure, never a reason to stop the batch.
type Client interface {
	Send(ctx context.Context, address, body string) error
}

// Factory hands out a usable Client or reports the provider as unavailable
// (appErrors.ErrChannelUnavailable). Unavailability aborts a campaign
// before any recipient row is written; a failed Send does not.
type Factory interface {
	Client() (Client, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() (Client, error)

func (f FactoryFunc) Client() (Client, error) { return f() }
