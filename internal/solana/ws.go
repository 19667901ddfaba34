package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
// A client does not reconnect on its own: once the transport fails the
// Done channel closes and the caller decides whether to build a new one.
type WSClient interface {
	// SubscribeProgram subscribes to account changes for accounts owned
	// by a program, optionally narrowed by server-side filters.
	SubscribeProgram(ctx context.Context, filter ProgramFilter) (*Subscription, error)

	// Done is closed when the connection is lost or the client closed.
	Done() <-chan struct{}

	// Err returns the transport failure after Done is closed, or nil on
	// a clean Close.
	Err() error

	// Close closes the WebSocket connection and all subscriptions.
	Close() error
}

// ProgramFilter defines a programSubscribe filter set.
type ProgramFilter struct {
	// ProgramID is the owning program address.
	ProgramID string

	// DataSize restricts matches to accounts of this exact byte size.
	// Zero disables the filter.
	DataSize int

	// Memcmp restricts matches to accounts whose data carries an exact
	// byte pattern at a fixed offset. Nil disables the filter.
	Memcmp *Memcmp
}

// Memcmp is a server-side byte-pattern filter.
type Memcmp struct {
	Offset int
	Bytes  []byte
}

// AccountUpdate is one account-change notification.
type AccountUpdate struct {
	Pubkey   string
	Data     []byte // raw account data
	Slot     int64
	Lamports uint64
	Owner    string
}

// Subscription is one live program subscription.
type Subscription struct {
	// ID is the server-assigned subscription identifier.
	ID int64

	// Updates delivers account notifications until Unsubscribe or the
	// client's Done channel closes.
	Updates <-chan AccountUpdate

	cancel func(ctx context.Context) error
}

// NewSubscription wraps an update channel and a cancel hook. Fake
// clients in tests use it; the production client builds its own.
func NewSubscription(id int64, updates <-chan AccountUpdate, cancel func(ctx context.Context) error) *Subscription {
	return &Subscription{ID: id, Updates: updates, cancel: cancel}
}

// Unsubscribe releases the subscription on the server and closes Updates.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	return s.cancel(ctx)
}
