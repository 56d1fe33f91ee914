package usecase

import (
	"context"
	"errors"
	"time"

	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/AzielCF/wa-gateway/session"
)

// SessionManager is the part of session.Manager the use cases drive.
type SessionManager interface {
	StartSession(ctx context.Context, accountID string, force bool) error
	Logout(ctx context.Context, accountID string) error
	SendMessage(ctx context.Context, accountID, destination, text string) error
	GetAccountView(accountID string) (domainAccount.AccountView, error)
	ListAccountViews() []domainAccount.AccountView
	GetQR(accountID string) (string, time.Time, error)
	StatusCounts() map[string]int
}

var _ SessionManager = (*session.Manager)(nil)

// toAPIError maps session errors onto the REST error types.
func toAPIError(accountID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrUnknownAccount):
		return pkgError.UnknownAccountError(accountID)
	case errors.Is(err, session.ErrAlreadyConnected):
		return pkgError.AlreadyConnectedError(accountID)
	case errors.Is(err, session.ErrNoActiveSession):
		return pkgError.NoActiveSessionError(accountID)
	case errors.Is(err, session.ErrNotAvailable):
		return pkgError.QRNotAvailableError(accountID)
	case errors.Is(err, session.ErrConnectFailed):
		return pkgError.ConnectFailedError(err.Error())
	case errors.Is(err, session.ErrSendFailed):
		return pkgError.SendFailedError(err.Error())
	default:
		return pkgError.InternalServerError(err.Error())
	}
}
