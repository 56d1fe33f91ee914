package validations

import (
	"context"
	"strings"
	"testing"

	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	domainSend "github.com/AzielCF/wa-gateway/domains/send"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/stretchr/testify/assert"
)

func TestValidateSendMessage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		request domainSend.MessageRequest
		field   string
	}{
		{"missing account", domainSend.MessageRequest{To: "5511", Message: "hi"}, "account_id"},
		{"missing to", domainSend.MessageRequest{AccountID: "acct-1", Message: "hi"}, "to"},
		{"missing message", domainSend.MessageRequest{AccountID: "acct-1", To: "5511"}, "message"},
		{"message too long", domainSend.MessageRequest{AccountID: "acct-1", To: "5511", Message: strings.Repeat("a", MaxMessageLength+1)}, "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSendMessage(ctx, tt.request)
			var validationErr pkgError.ValidationError
			assert.ErrorAs(t, err, &validationErr)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	assert.NoError(t, ValidateSendMessage(ctx, domainSend.MessageRequest{AccountID: "acct-1", To: "5511", Message: "hi"}))
}

func TestValidateResetRateLimit(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, ValidateResetRateLimit(ctx, domainAccount.ResetRateLimitRequest{AccountID: "acct-1"}))
	assert.NoError(t, ValidateResetRateLimit(ctx, domainAccount.ResetRateLimitRequest{AccountID: "acct-1", To: "5511"}))
}
