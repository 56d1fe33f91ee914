package session

import (
	"context"
	"strings"
	"time"

	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/AzielCF/wa-gateway/integrations/webhook"
	"github.com/AzielCF/wa-gateway/pkg/msgworker"
	"github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Disconnect reasons.
const (
	ReasonLoggedOut      = "logged_out"
	ReasonUserLogout     = "user_logout"
	ReasonStreamReplaced = "stream_replaced"
	ReasonQRTimeout      = "qr_timeout"
)

// ReasonKeepAliveTimeout marks a socket that stopped answering pings.
const ReasonKeepAliveTimeout = "keepalive_timeout"

// maxReconnectDelay caps the backoff between failed reconnect attempts.
const maxReconnectDelay = 5 * time.Minute

// logoutReasons never trigger an automatic reconnect.
var logoutReasons = map[string]struct{}{
	ReasonLoggedOut:      {},
	ReasonUserLogout:     {},
	ReasonStreamReplaced: {},
}

func isLogoutReason(reason string) bool {
	_, ok := logoutReasons[reason]
	return ok
}

// isGroupOrBroadcast reports whether a JID belongs to a group, a broadcast
// list, the status feed or a newsletter.
func isGroupOrBroadcast(jid string) bool {
	return strings.HasSuffix(jid, "@g.us") ||
		strings.HasSuffix(jid, "@broadcast") ||
		strings.HasSuffix(jid, "@newsletter")
}

// dispatcher is the only code that touches the protocol's callback API. The
// generation pins callbacks to the handle they were registered on.
func (m *Manager) dispatcher(accountID string, gen uint64) EventHandler {
	return func(evt any) {
		switch v := evt.(type) {
		case *ConnectedEvent:
			m.onConnected(accountID, gen, v.JID)
		case *DisconnectedEvent:
			m.onDisconnected(accountID, gen, v.Reason)
		case *LoggedOutEvent:
			m.onDisconnected(accountID, gen, ReasonLoggedOut)
		case *MessageEvent:
			m.onMessage(accountID, gen, *v)
		default:
			logrus.WithField("account_id", accountID).Debugf("[SESSION] Ignoring event %T", evt)
		}
	}
}

// current locks s and reports whether gen still identifies its live handle.
// On true the caller must unlock.
func (m *Manager) current(accountID string, gen uint64) (*accountSession, bool) {
	s, ok := m.sessions[accountID]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	if s.generation != gen || s.handle == nil {
		s.mu.Unlock()
		return nil, false
	}
	return s, true
}

func (m *Manager) consumeQR(accountID string, gen uint64, ch <-chan QRItem) {
	for item := range ch {
		switch item.Event {
		case QREventCode:
			m.onQR(accountID, gen, item.Code)
		case QREventSuccess:
			logrus.WithField("account_id", accountID).Info("[SESSION] QR pairing succeeded")
		case QREventTimeout:
			m.onQRTimeout(accountID, gen)
		default:
			if item.Err != nil {
				m.onProtocolError(accountID, gen, item.Err)
			}
		}
	}
}

func (m *Manager) onQR(accountID string, gen uint64, code string) {
	s, ok := m.current(accountID, gen)
	if !ok {
		return
	}
	defer s.mu.Unlock()

	if s.status == domainAccount.StatusConnected {
		return
	}

	now := m.now()
	s.setStatus(domainAccount.StatusQRReady)
	s.qr = &qrCode{code: code, issuedAt: now, expiresAt: now.Add(m.qrTTL)}

	logrus.WithField("account_id", accountID).Info("[SESSION] QR code ready")
	m.publish(event.TypeQRReady, accountID, map[string]any{
		"qr_code":       code,
		"qr_expires_at": s.qr.expiresAt.UTC().Format(time.RFC3339),
	})
}

func (m *Manager) onQRTimeout(accountID string, gen uint64) {
	s, ok := m.current(accountID, gen)
	if !ok {
		return
	}
	defer s.mu.Unlock()

	if s.status == domainAccount.StatusConnected {
		return
	}
	// The QR stream also ends this way when the socket drops mid-pairing.
	// Either way a new pairing needs an explicit login.
	s.stopReconnect()
	s.setStatus(domainAccount.StatusDisconnected)
	s.lastError = ReasonQRTimeout

	logrus.WithField("account_id", accountID).Info("[SESSION] QR pairing timed out")
	m.publish(event.TypeDisconnected, accountID, map[string]any{"reason": ReasonQRTimeout})
}

func (m *Manager) onProtocolError(accountID string, gen uint64, err error) {
	s, ok := m.current(accountID, gen)
	if !ok {
		return
	}
	defer s.mu.Unlock()
	m.fail(s, err)
}

func (m *Manager) onConnected(accountID string, gen uint64, jid string) {
	s, ok := m.current(accountID, gen)
	if !ok {
		return
	}
	defer s.mu.Unlock()

	now := m.now()
	s.stopReconnect()
	s.reconnectAttempt = 0
	s.setStatus(domainAccount.StatusConnected)
	s.connectedAt = &now
	s.lastError = ""
	s.phone = utils.PhoneFromJID(jid)

	logrus.WithFields(logrus.Fields{"account_id": accountID, "phone": s.phone}).Info("[SESSION] Connected")
	m.publish(event.TypeConnected, accountID, map[string]any{
		"phone":        s.phone,
		"jid":          jid,
		"connected_at": now.UTC().Format(time.RFC3339),
	})
}

func (m *Manager) onDisconnected(accountID string, gen uint64, reason string) {
	s, ok := m.current(accountID, gen)
	if !ok {
		return
	}
	defer s.mu.Unlock()

	if reason == "" {
		reason = "connection_lost"
	}
	if reason == ReasonKeepAliveTimeout {
		if s.status != domainAccount.StatusConnected {
			return
		}
		// The socket may still look open, drop it before reconnecting.
		safeDisconnect(accountID, s.handle)
	}
	s.setStatus(domainAccount.StatusDisconnected)
	s.lastError = reason
	m.publish(event.TypeDisconnected, accountID, map[string]any{"reason": reason})

	log := logrus.WithFields(logrus.Fields{"account_id": accountID, "reason": reason})
	if isLogoutReason(reason) {
		s.stopReconnect()
		log.Info("[SESSION] Session ended by logout, not reconnecting")
		return
	}

	delay := m.scheduleReconnect(s, gen)
	log.Warnf("[SESSION] Unexpected disconnect, reconnecting in %s", delay)
}

// scheduleReconnect arms the reconnect timer with exponential backoff from
// reconnectDelay up to maxReconnectDelay. Caller holds s.mu.
func (m *Manager) scheduleReconnect(s *accountSession, gen uint64) time.Duration {
	delay := m.reconnectDelay
	for i := 0; i < s.reconnectAttempt && delay < maxReconnectDelay; i++ {
		delay *= 2
	}
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	s.reconnectAttempt++

	s.stopReconnect()
	accountID := s.account.ID
	s.reconnect = time.AfterFunc(delay, func() {
		m.reconnect(accountID, gen)
	})
	return delay
}

// reconnect re-issues Connect on the same handle, unless the session moved
// on (logout, new login, or already reconnected) while the timer was pending.
// A failed attempt schedules the next one.
func (m *Manager) reconnect(accountID string, gen uint64) {
	s, ok := m.current(accountID, gen)
	if !ok {
		logrus.WithField("account_id", accountID).Debug("[SESSION] Reconnect skipped, session was replaced")
		return
	}
	defer s.mu.Unlock()

	s.reconnect = nil
	if s.status != domainAccount.StatusDisconnected && s.status != domainAccount.StatusError {
		return
	}

	log := logrus.WithFields(logrus.Fields{"account_id": accountID, "attempt": s.reconnectAttempt})
	if !s.handle.IsPaired() {
		// Without credentials Connect would only wait for a QR stream that
		// no longer exists.
		s.setStatus(domainAccount.StatusDisconnected)
		log.Info("[SESSION] Device not paired, login required instead of reconnect")
		return
	}

	log.Warn("[SESSION] Attempting automatic reconnect")
	s.setStatus(domainAccount.StatusConnecting)
	if err := s.handle.Connect(); err != nil {
		m.fail(s, err)
		delay := m.scheduleReconnect(s, gen)
		log.WithError(err).Warnf("[SESSION] Reconnect failed, retrying in %s", delay)
	}
}

func (m *Manager) onMessage(accountID string, gen uint64, msg MessageEvent) {
	if msg.FromMe || isGroupOrBroadcast(msg.Chat) || isGroupOrBroadcast(msg.Sender) {
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	s, ok := m.current(accountID, gen)
	if !ok {
		return
	}
	s.mu.Unlock()

	if m.forwarder == nil || !m.forwarder.Enabled(accountID) {
		logrus.WithField("account_id", accountID).Debug("[SESSION] No webhook for account, message not forwarded")
		return
	}

	replyTo := msg.Chat
	if replyTo == "" {
		replyTo = msg.Sender
	}

	if m.jobs == nil {
		go m.relay(m.ctx, accountID, replyTo, msg)
		return
	}
	m.jobs.TryDispatch(msgworker.Job{
		AccountID: accountID,
		Sender:    replyTo,
		Handler: func(ctx context.Context) error {
			m.relay(ctx, accountID, replyTo, msg)
			return nil
		},
	})
}

// relay forwards one inbound message and sends back whatever the AI service
// answered. Failures are logged and never reach the chat user.
func (m *Manager) relay(ctx context.Context, accountID, replyTo string, msg MessageEvent) {
	sender := utils.PhoneFromJID(msg.Sender)
	if sender == "" {
		sender = utils.PhoneFromJID(replyTo)
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}

	log := logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"to":         replyTo,
	})

	resp, err := m.forwarder.Forward(ctx, webhook.Message{
		Sender:    sender,
		Message:   msg.Text,
		Timestamp: ts.UTC(),
		AccountID: accountID,
	})
	if err != nil {
		log.WithError(err).WithField("message", utils.Truncate(msg.Text, 64)).Warn("[SESSION] Webhook delivery failed, dropping message")
		return
	}

	for _, reply := range resp.Messages {
		if strings.TrimSpace(reply.Response) == "" {
			continue
		}
		if err := m.SendMessage(ctx, accountID, replyTo, reply.Response); err != nil {
			log.WithError(err).WithField("message", utils.Truncate(reply.Response, 64)).Error("[SESSION] Failed to relay reply")
		}
	}
}
