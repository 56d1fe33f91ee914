package usecase

import (
	"context"

	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/AzielCF/wa-gateway/pkg/ratelimit"
	"github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/AzielCF/wa-gateway/validations"
	"github.com/sirupsen/logrus"
)

const LoginStatusQRGenerating = "qr_generating"

type serviceAccount struct {
	sessions SessionManager
	limiter  *ratelimit.Limiter
}

func NewAccountService(sessions SessionManager, limiter *ratelimit.Limiter) domainAccount.IAccountUsecase {
	return &serviceAccount{
		sessions: sessions,
		limiter:  limiter,
	}
}

func (service *serviceAccount) List(ctx context.Context) []domainAccount.AccountView {
	return service.sessions.ListAccountViews()
}

func (service *serviceAccount) Get(ctx context.Context, accountID string) (domainAccount.AccountView, error) {
	view, err := service.sessions.GetAccountView(accountID)
	if err != nil {
		return domainAccount.AccountView{}, toAPIError(accountID, err)
	}
	return view, nil
}

func (service *serviceAccount) GetQR(ctx context.Context, accountID string) (domainAccount.QRResponse, error) {
	code, expiresAt, err := service.sessions.GetQR(accountID)
	if err != nil {
		return domainAccount.QRResponse{}, toAPIError(accountID, err)
	}
	return domainAccount.QRResponse{
		AccountID:   accountID,
		QRCode:      code,
		QRExpiresAt: expiresAt,
	}, nil
}

func (service *serviceAccount) Login(ctx context.Context, request domainAccount.LoginRequest) (domainAccount.LoginResponse, error) {
	log := logrus.WithFields(logrus.Fields{"account_id": request.AccountID, "force": request.Force})
	log.Info("[SESSION] Login requested")

	// The protocol client outlives the request, so it must not inherit its context.
	if err := service.sessions.StartSession(context.WithoutCancel(ctx), request.AccountID, request.Force); err != nil {
		log.WithError(err).Warn("[SESSION] Login failed")
		return domainAccount.LoginResponse{}, toAPIError(request.AccountID, err)
	}
	return domainAccount.LoginResponse{Success: true, Status: LoginStatusQRGenerating}, nil
}

func (service *serviceAccount) Logout(ctx context.Context, accountID string) (domainAccount.LogoutResponse, error) {
	if err := service.sessions.Logout(ctx, accountID); err != nil {
		return domainAccount.LogoutResponse{}, toAPIError(accountID, err)
	}
	return domainAccount.LogoutResponse{Success: true}, nil
}

func (service *serviceAccount) ResetRateLimit(ctx context.Context, request domainAccount.ResetRateLimitRequest) error {
	if err := validations.ValidateResetRateLimit(ctx, request); err != nil {
		return err
	}
	if _, err := service.sessions.GetAccountView(request.AccountID); err != nil {
		return toAPIError(request.AccountID, err)
	}

	to := request.To
	utils.SanitizePhone(&to)
	if err := service.limiter.Reset(ctx, request.AccountID, utils.DestinationKey(to)); err != nil {
		return pkgError.InternalServerError(err.Error())
	}
	return nil
}
