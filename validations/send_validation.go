package validations

import (
	"context"

	domainSend "github.com/AzielCF/wa-gateway/domains/send"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MaxMessageLength = 4096

func ValidateSendMessage(ctx context.Context, request domainSend.MessageRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.To, validation.Required),
		validation.Field(&request.Message, validation.Required, validation.RuneLength(1, MaxMessageLength)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
