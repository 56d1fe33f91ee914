package session

import (
	"context"
	"time"
)

// QR stream item kinds.
const (
	QREventCode    = "code"
	QREventSuccess = "success"
	QREventTimeout = "timeout"
	QREventError   = "error"
)

// QRItem is one element of the pairing stream.
type QRItem struct {
	Event   string
	Code    string
	Timeout time.Duration
	Err     error
}

// Typed events delivered by a ProtocolClient through its handler.
type (
	ConnectedEvent struct {
		JID string
	}
	DisconnectedEvent struct {
		Reason string
	}
	LoggedOutEvent struct {
		Reason string
	}
	MessageEvent struct {
		ID        string
		Chat      string
		Sender    string
		Text      string
		FromMe    bool
		Timestamp time.Time
	}
)

// EventHandler receives one of the event types above. Calls for a single
// client arrive serially.
type EventHandler func(evt any)

// ProtocolClient is one live connection to the messaging network for one
// account. Implementations need not be safe for concurrent use; the Manager
// serialises every call per account.
type ProtocolClient interface {
	Connect() error
	Disconnect()
	Logout(ctx context.Context) error
	SendMessage(ctx context.Context, destination, text string) error
	// GetQRChannel must be called before Connect on an unpaired client.
	GetQRChannel(ctx context.Context) (<-chan QRItem, error)
	AddEventHandler(handler EventHandler)
	// IsPaired reports whether the device store already holds credentials,
	// in which case no QR stream is needed.
	IsPaired() bool
	IsConnected() bool
}

// ClientFactory builds a fresh, unconnected client for an account.
type ClientFactory func(ctx context.Context, accountID string) (ProtocolClient, error)
