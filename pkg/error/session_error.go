package error

import (
	"fmt"
	"math"
	"net/http"
	"time"
)

type UnknownAccountError string

func (err UnknownAccountError) Error() string {
	return fmt.Sprintf("account %q is not configured", string(err))
}

func (err UnknownAccountError) ErrCode() string {
	return "UNKNOWN_ACCOUNT"
}

func (err UnknownAccountError) StatusCode() int {
	return http.StatusNotFound
}

type AlreadyConnectedError string

func (err AlreadyConnectedError) Error() string {
	return fmt.Sprintf("account %q is already connected; use force to restart the session", string(err))
}

func (err AlreadyConnectedError) ErrCode() string {
	return "ALREADY_CONNECTED"
}

func (err AlreadyConnectedError) StatusCode() int {
	return http.StatusConflict
}

type NoActiveSessionError string

func (err NoActiveSessionError) Error() string {
	return fmt.Sprintf("account %q has no active session", string(err))
}

func (err NoActiveSessionError) ErrCode() string {
	return "NO_ACTIVE_SESSION"
}

func (err NoActiveSessionError) StatusCode() int {
	return http.StatusConflict
}

type QRNotAvailableError string

func (err QRNotAvailableError) Error() string {
	return fmt.Sprintf("no QR code available for account %q; start a login first", string(err))
}

func (err QRNotAvailableError) ErrCode() string {
	return "QR_NOT_AVAILABLE"
}

func (err QRNotAvailableError) StatusCode() int {
	return http.StatusNotFound
}

type ConnectFailedError string

func (err ConnectFailedError) Error() string {
	return string(err)
}

func (err ConnectFailedError) ErrCode() string {
	return "CONNECT_FAILED"
}

func (err ConnectFailedError) StatusCode() int {
	return http.StatusInternalServerError
}

type SendFailedError string

func (err SendFailedError) Error() string {
	return string(err)
}

func (err SendFailedError) ErrCode() string {
	return "SEND_FAILED"
}

func (err SendFailedError) StatusCode() int {
	return http.StatusInternalServerError
}

// RateLimitedError carries the time until the exceeded window reopens.
type RateLimitedError struct {
	Window     string
	RetryAfter time.Duration
}

func (err RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for this destination (%s window), retry in %d seconds", err.Window, err.RetryAfterSeconds())
}

func (err RateLimitedError) ErrCode() string {
	return "RATE_LIMITED"
}

func (err RateLimitedError) StatusCode() int {
	return http.StatusTooManyRequests
}

// RetryAfterSeconds rounds up so a client never retries too early.
func (err RateLimitedError) RetryAfterSeconds() int {
	secs := int(math.Ceil(err.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
