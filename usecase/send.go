package usecase

import (
	"context"
	"errors"
	"time"

	domainSend "github.com/AzielCF/wa-gateway/domains/send"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/AzielCF/wa-gateway/pkg/ratelimit"
	"github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/AzielCF/wa-gateway/validations"
	"github.com/sirupsen/logrus"
)

type serviceSend struct {
	sessions SessionManager
	limiter  *ratelimit.Limiter
	now      func() time.Time
}

func NewSendService(sessions SessionManager, limiter *ratelimit.Limiter) domainSend.ISendUsecase {
	return &serviceSend{
		sessions: sessions,
		limiter:  limiter,
		now:      time.Now,
	}
}

// SendText runs check, send, increment in that order. Counters only move
// after the protocol accepted the message.
func (service *serviceSend) SendText(ctx context.Context, request domainSend.MessageRequest) (response domainSend.MessageResponse, err error) {
	if err = validations.ValidateSendMessage(ctx, request); err != nil {
		return response, err
	}

	to := request.To
	utils.SanitizePhone(&to)
	if to == "" {
		return response, pkgError.ValidationError("to: must contain a phone number or JID.")
	}

	if _, err = service.sessions.GetAccountView(request.AccountID); err != nil {
		return response, toAPIError(request.AccountID, err)
	}

	// One budget per recipient, however the destination was spelled.
	key := utils.DestinationKey(to)
	log := logrus.WithFields(logrus.Fields{
		"account_id": request.AccountID,
		"to":         to,
	})

	if err = service.limiter.Check(ctx, request.AccountID, key); err != nil {
		var limitErr *ratelimit.LimitError
		if errors.As(err, &limitErr) {
			log.WithField("retry_after", limitErr.RetryAfter.Round(time.Second)).Warn("[RATELIMIT] Send denied")
			return response, pkgError.RateLimitedError{Window: limitErr.Window, RetryAfter: limitErr.RetryAfter}
		}
		return response, pkgError.InternalServerError(err.Error())
	}

	if err = service.sessions.SendMessage(ctx, request.AccountID, to, request.Message); err != nil {
		log.WithError(err).Error("[SEND] Send failed")
		return response, toAPIError(request.AccountID, err)
	}

	if incErr := service.limiter.Increment(ctx, request.AccountID, key); incErr != nil {
		log.WithError(incErr).Warn("[RATELIMIT] Failed to record send")
	}

	log.WithField("message", utils.Truncate(request.Message, 64)).Info("[SEND] Message sent")
	return domainSend.MessageResponse{
		Success:   true,
		Timestamp: service.now().UTC(),
		ToPhone:   utils.PhoneFromJID(to),
	}, nil
}
