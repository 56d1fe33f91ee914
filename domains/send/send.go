package send

import (
	"context"
	"time"
)

type MessageRequest struct {
	AccountID string `json:"account_id"`
	To        string `json:"to"`
	Message   string `json:"message"`
}

type MessageResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	ToPhone   string    `json:"to_phone"`
}

type ISendUsecase interface {
	SendText(ctx context.Context, request MessageRequest) (MessageResponse, error)
}
