package validations

import (
	"context"

	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateResetRateLimit(ctx context.Context, request domainAccount.ResetRateLimitRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.To, validation.Required),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
