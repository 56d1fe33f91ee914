package account

import (
	"context"
	"time"
)

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusQRReady      ConnectionStatus = "qr_ready"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// Account is the static identity of a configured messaging account.
type Account struct {
	ID          string
	DisplayName string
	Type        string
}

// AccountView is a read-only snapshot of an account and its session.
type AccountView struct {
	ID               string           `json:"id"`
	AccountID        string           `json:"account_id"`
	AccountType      string           `json:"account_type"`
	DisplayName      string           `json:"display_name"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	QRCode           string           `json:"qr_code,omitempty"`
	QRExpiresAt      *time.Time       `json:"qr_expires_at,omitempty"`
	ConnectedAt      *time.Time       `json:"connected_at,omitempty"`
	ConnectedSince   string           `json:"connected_since,omitempty"`
	Phone            string           `json:"phone,omitempty"`
	LastError        string           `json:"last_error,omitempty"`
}

type QRResponse struct {
	AccountID   string    `json:"account_id"`
	QRCode      string    `json:"qr_code"`
	QRExpiresAt time.Time `json:"qr_expires_at"`
}

type LoginRequest struct {
	AccountID string `json:"-"`
	Force     bool   `json:"force"`
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

type ResetRateLimitRequest struct {
	AccountID string `json:"-"`
	To        string `json:"to"`
}

type IAccountUsecase interface {
	List(ctx context.Context) []AccountView
	Get(ctx context.Context, accountID string) (AccountView, error)
	GetQR(ctx context.Context, accountID string) (QRResponse, error)
	Login(ctx context.Context, request LoginRequest) (LoginResponse, error)
	Logout(ctx context.Context, accountID string) (LogoutResponse, error)
	ResetRateLimit(ctx context.Context, request ResetRateLimitRequest) error
}
