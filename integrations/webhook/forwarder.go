package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	pkgUtils "github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrDeliveryFailed wraps every failure returned by Forward.
var ErrDeliveryFailed = pkgError.WebhookError("webhook delivery failed")

// errPermanent marks a failure that retrying cannot fix.
var errPermanent = errors.New("permanent")

const (
	defaultTimeout        = 30 * time.Second
	defaultAttemptTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
	maxResponseBytes      = 1 << 20
)

// Message is the payload posted to the AI service.
type Message struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	AccountID string    `json:"account_id"`
}

type Reply struct {
	Response string `json:"response"`
}

// Response is what the AI service answers.
type Response struct {
	Success  bool    `json:"success"`
	Messages []Reply `json:"messages,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type Config struct {
	Secret             string
	Timeout            time.Duration // total time across all attempts
	AttemptTimeout     time.Duration
	MaxAttempts        int
	InitialBackoff     time.Duration
	InsecureSkipVerify bool
}

// URLResolver maps an account to its webhook URL; "" disables forwarding.
type URLResolver func(accountID string) string

// Forwarder posts inbound messages to the account's webhook with bounded
// retries and exponential backoff.
type Forwarder struct {
	cfg     Config
	resolve URLResolver
	client  *http.Client
}

func NewForwarder(cfg Config, resolve URLResolver) *Forwarder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	return &Forwarder{
		cfg:     cfg,
		resolve: resolve,
		client:  &http.Client{Timeout: cfg.AttemptTimeout, Transport: transport},
	}
}

// Enabled reports whether the account has a webhook target.
func (f *Forwarder) Enabled(accountID string) bool {
	return f != nil && f.resolve != nil && f.resolve(accountID) != ""
}

// Forward delivers msg and returns the decoded answer.
func (f *Forwarder) Forward(ctx context.Context, msg Message) (*Response, error) {
	url := ""
	if f.resolve != nil {
		url = f.resolve(msg.AccountID)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: no webhook configured for account %s", ErrDeliveryFailed, msg.AccountID)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal body: %v", ErrDeliveryFailed, err)
	}

	signature := ""
	if f.cfg.Secret != "" {
		signature, err = pkgUtils.GetMessageDigestOrSignature(body, []byte(f.cfg.Secret))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to sign body: %v", ErrDeliveryFailed, err)
		}
	}

	deliveryID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{
		"account_id":  msg.AccountID,
		"delivery_id": deliveryID,
	})

	var lastErr error
	backoff := f.cfg.InitialBackoff
	attempt := 0
	for attempt < f.cfg.MaxAttempts {
		attempt++
		resp, err := f.post(ctx, url, body, signature, deliveryID)
		if err == nil {
			log.Debugf("[WEBHOOK] Delivered on attempt %d", attempt)
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, errPermanent) {
			break
		}
		log.Warnf("[WEBHOOK] Attempt %d failed: %v", attempt, err)

		if attempt >= f.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: gave up after %d attempts: %v", ErrDeliveryFailed, attempt, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%w: after %d attempts: %v", ErrDeliveryFailed, attempt, lastErr)
}

func (f *Forwarder) post(ctx context.Context, url string, body []byte, signature, deliveryID string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: error when create http object %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", deliveryID)
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", "sha256="+signature)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("webhook returned status %d", res.StatusCode)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: webhook returned status %d", errPermanent, res.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", errPermanent, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: webhook reported failure: %s", errPermanent, out.Error)
	}
	return &out, nil
}
