package event

import "time"

type Type string

const (
	TypeQRReady      Type = "qr_ready"
	TypeConnected    Type = "connected"
	TypeDisconnected Type = "disconnected"
	TypeError        Type = "error"
	TypeHeartbeat    Type = "heartbeat"
)

// Event is an immutable notification about an account's connection state.
type Event struct {
	Type      Type           `json:"type"`
	AccountID string         `json:"account_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New builds an Event stamped with the current time.
func New(t Type, accountID string, data map[string]any) Event {
	return Event{Type: t, AccountID: accountID, Data: data, Timestamp: time.Now().UTC()}
}

// Publisher receives events produced by the session layer.
type Publisher interface {
	Broadcast(evt Event)
}

// Filter selects events by account and type. Empty sets match everything.
type Filter struct {
	Accounts map[string]struct{}
	Types    map[Type]struct{}
}

func NewFilter(accounts, types []string) Filter {
	f := Filter{}
	for _, a := range accounts {
		if a == "" {
			continue
		}
		if f.Accounts == nil {
			f.Accounts = make(map[string]struct{})
		}
		f.Accounts[a] = struct{}{}
	}
	for _, t := range types {
		if t == "" {
			continue
		}
		if f.Types == nil {
			f.Types = make(map[Type]struct{})
		}
		f.Types[Type(t)] = struct{}{}
	}
	return f
}

// Match reports whether evt passes the filter. Heartbeats always pass.
func (f Filter) Match(evt Event) bool {
	if evt.Type == TypeHeartbeat {
		return true
	}
	if f.Accounts != nil {
		if _, ok := f.Accounts[evt.AccountID]; !ok {
			return false
		}
	}
	if f.Types != nil {
		if _, ok := f.Types[evt.Type]; !ok {
			return false
		}
	}
	return true
}
