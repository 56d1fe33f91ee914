package session

import (
	"context"
	"sync"
	"time"

	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/AzielCF/wa-gateway/integrations/webhook"
	"github.com/AzielCF/wa-gateway/pkg/msgworker"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	DefaultQRTTL          = 2 * time.Minute
	DefaultReconnectDelay = 5 * time.Second
)

// Forwarder delivers inbound messages to the AI service.
type Forwarder interface {
	Enabled(accountID string) bool
	Forward(ctx context.Context, msg webhook.Message) (*webhook.Response, error)
}

// Dispatcher runs inbound jobs off the protocol callback path.
type Dispatcher interface {
	TryDispatch(job msgworker.Job) bool
}

type Options struct {
	QRTTL          time.Duration
	ReconnectDelay time.Duration
	Forwarder      Forwarder
	Jobs           Dispatcher
	Clock          func() time.Time
}

type qrCode struct {
	code      string
	issuedAt  time.Time
	expiresAt time.Time
}

// accountSession is the state machine of one account. Every field below mu
// is guarded by it.
type accountSession struct {
	account domainAccount.Account

	mu               sync.Mutex
	status           domainAccount.ConnectionStatus
	handle           ProtocolClient
	generation       uint64
	qr               *qrCode
	lastError        string
	connectedAt      *time.Time
	phone            string
	reconnect        *time.Timer
	reconnectAttempt int // consecutive reconnects since the last connect
	qrCancel         context.CancelFunc
}

// setStatus moves the state machine and keeps the QR only while QRReady.
func (s *accountSession) setStatus(status domainAccount.ConnectionStatus) {
	s.status = status
	if status != domainAccount.StatusQRReady {
		s.qr = nil
	}
	if status != domainAccount.StatusConnected {
		s.connectedAt = nil
	}
}

func (s *accountSession) stopReconnect() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// Manager owns one session per configured account. Operations on different
// accounts never contend; operations on the same account are serialised.
type Manager struct {
	sessions map[string]*accountSession
	order    []string

	factory   ClientFactory
	events    event.Publisher
	forwarder Forwarder
	jobs      Dispatcher

	qrTTL          time.Duration
	reconnectDelay time.Duration
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(accounts []domainAccount.Account, factory ClientFactory, events event.Publisher, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:       make(map[string]*accountSession, len(accounts)),
		factory:        factory,
		events:         events,
		forwarder:      opts.Forwarder,
		jobs:           opts.Jobs,
		qrTTL:          opts.QRTTL,
		reconnectDelay: opts.ReconnectDelay,
		now:            opts.Clock,
		ctx:            ctx,
		cancel:         cancel,
	}
	if m.qrTTL <= 0 {
		m.qrTTL = DefaultQRTTL
	}
	if m.reconnectDelay <= 0 {
		m.reconnectDelay = DefaultReconnectDelay
	}
	if m.now == nil {
		m.now = time.Now
	}

	for _, acc := range accounts {
		if _, dup := m.sessions[acc.ID]; dup {
			continue
		}
		m.sessions[acc.ID] = &accountSession{
			account: acc,
			status:  domainAccount.StatusDisconnected,
		}
		m.order = append(m.order, acc.ID)
	}
	return m
}

func (m *Manager) session(accountID string) (*accountSession, error) {
	s, ok := m.sessions[accountID]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return s, nil
}

func (m *Manager) publish(t event.Type, accountID string, data map[string]any) {
	if m.events == nil {
		return
	}
	evt := event.New(t, accountID, data)
	evt.Timestamp = m.now().UTC()
	m.events.Broadcast(evt)
}

// StartSession creates a new protocol client for the account and issues
// Connect. QR and connection outcomes arrive later through the dispatcher.
func (m *Manager) StartSession(ctx context.Context, accountID string, force bool) error {
	_, err := m.startSession(ctx, accountID, force, false)
	return err
}

// Resume starts a session for every account whose device is already paired.
// Unpaired accounts are left alone.
func (m *Manager) Resume(ctx context.Context) {
	for _, id := range m.order {
		started, err := m.startSession(ctx, id, false, true)
		switch {
		case err != nil:
			logrus.WithError(err).WithField("account_id", id).Warn("[SESSION] Auto-start failed")
		case started:
			logrus.WithField("account_id", id).Info("[SESSION] Auto-started paired session")
		}
	}
}

func (m *Manager) startSession(ctx context.Context, accountID string, force, pairedOnly bool) (bool, error) {
	s, err := m.session(accountID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("account_id", accountID)

	if s.handle != nil && s.status == domainAccount.StatusConnected && !force {
		return false, ErrAlreadyConnected
	}
	if s.handle != nil {
		log.Info("[SESSION] Retiring existing session before starting a new one")
		m.retire(s)
	}

	client, err := m.factory(ctx, accountID)
	if err != nil {
		m.fail(s, err)
		return false, &ConnectError{Cause: err}
	}
	if pairedOnly && !client.IsPaired() {
		safeDisconnect(accountID, client)
		return false, nil
	}

	s.generation++
	gen := s.generation
	client.AddEventHandler(m.dispatcher(accountID, gen))

	// The QR stream must exist before Connect or early codes are lost.
	var qrCh <-chan QRItem
	if !client.IsPaired() {
		qrCtx, qrCancel := context.WithCancel(m.ctx)
		qrCh, err = client.GetQRChannel(qrCtx)
		if err != nil {
			qrCancel()
			safeDisconnect(accountID, client)
			m.fail(s, err)
			return false, &ConnectError{Cause: err}
		}
		s.qrCancel = qrCancel
	}

	s.handle = client
	s.lastError = ""
	s.phone = ""
	s.setStatus(domainAccount.StatusConnecting)

	if err := client.Connect(); err != nil {
		m.retire(s)
		m.fail(s, err)
		return false, &ConnectError{Cause: err}
	}

	if qrCh != nil {
		go m.consumeQR(accountID, gen, qrCh)
	}
	log.Info("[SESSION] Connect issued")
	return true, nil
}

// retire tears down the current handle. Teardown errors are logged only.
func (m *Manager) retire(s *accountSession) {
	s.stopReconnect()
	s.reconnectAttempt = 0
	if s.qrCancel != nil {
		s.qrCancel()
		s.qrCancel = nil
	}
	if s.handle != nil {
		safeDisconnect(s.account.ID, s.handle)
		s.handle = nil
	}
	// Late callbacks from the retired handle are ignored from here on.
	s.generation++
}

func (m *Manager) fail(s *accountSession, err error) {
	s.setStatus(domainAccount.StatusError)
	s.lastError = err.Error()
	logrus.WithError(err).WithField("account_id", s.account.ID).Error("[SESSION] Session error")
	m.publish(event.TypeError, s.account.ID, map[string]any{"error": err.Error()})
}

func safeDisconnect(accountID string, client ProtocolClient) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("account_id", accountID).Warnf("[SESSION] Disconnect panicked: %v", r)
		}
	}()
	client.Disconnect()
}

// Logout ends the session for good: protocol logout (best-effort), then
// disconnect and discard. No reconnect is scheduled.
func (m *Manager) Logout(ctx context.Context, accountID string) error {
	s, err := m.session(accountID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return ErrNoActiveSession
	}

	log := logrus.WithField("account_id", accountID)
	if err := s.handle.Logout(ctx); err != nil {
		log.WithError(err).Warn("[SESSION] Protocol logout failed, disconnecting anyway")
	}
	m.retire(s)

	s.setStatus(domainAccount.StatusDisconnected)
	s.lastError = ""
	s.phone = ""
	log.Info("[SESSION] Logged out")
	m.publish(event.TypeDisconnected, accountID, map[string]any{"reason": ReasonUserLogout})
	return nil
}

// SendMessage is the only path from the gateway to a protocol client's send.
func (m *Manager) SendMessage(ctx context.Context, accountID, destination, text string) error {
	s, err := m.session(accountID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil || s.status != domainAccount.StatusConnected {
		return ErrNoActiveSession
	}
	// The socket can drop before the disconnect callback lands.
	if !s.handle.IsConnected() {
		return ErrNoActiveSession
	}
	if err := s.handle.SendMessage(ctx, destination, text); err != nil {
		return &SendError{Cause: err}
	}
	return nil
}

func (m *Manager) GetAccountView(accountID string) (domainAccount.AccountView, error) {
	s, err := m.session(accountID)
	if err != nil {
		return domainAccount.AccountView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.view(s), nil
}

func (m *Manager) ListAccountViews() []domainAccount.AccountView {
	views := make([]domainAccount.AccountView, 0, len(m.order))
	for _, id := range m.order {
		s := m.sessions[id]
		s.mu.Lock()
		views = append(views, m.view(s))
		s.mu.Unlock()
	}
	return views
}

func (m *Manager) view(s *accountSession) domainAccount.AccountView {
	v := domainAccount.AccountView{
		ID:               s.account.ID,
		AccountID:        s.account.ID,
		AccountType:      s.account.Type,
		DisplayName:      s.account.DisplayName,
		ConnectionStatus: s.status,
		Phone:            s.phone,
		LastError:        s.lastError,
	}
	if qr, ok := m.liveQR(s); ok {
		expires := qr.expiresAt
		v.QRCode = qr.code
		v.QRExpiresAt = &expires
	}
	if s.connectedAt != nil {
		at := *s.connectedAt
		v.ConnectedAt = &at
		v.ConnectedSince = humanize.RelTime(at, m.now(), "ago", "from now")
	}
	return v
}

// liveQR returns the stored QR only if it is both current and unexpired.
func (m *Manager) liveQR(s *accountSession) (qrCode, bool) {
	if s.status != domainAccount.StatusQRReady || s.qr == nil {
		return qrCode{}, false
	}
	if !m.now().Before(s.qr.expiresAt) {
		return qrCode{}, false
	}
	return *s.qr, true
}

func (m *Manager) GetQR(accountID string) (code string, expiresAt time.Time, err error) {
	s, err := m.session(accountID)
	if err != nil {
		return "", time.Time{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	qr, ok := m.liveQR(s)
	if !ok {
		return "", time.Time{}, ErrNotAvailable
	}
	return qr.code, qr.expiresAt, nil
}

// StatusCounts returns how many accounts are in each status.
func (m *Manager) StatusCounts() map[string]int {
	counts := make(map[string]int)
	for _, v := range m.ListAccountViews() {
		counts[string(v.ConnectionStatus)]++
	}
	return counts
}

// Close disconnects every session without logging out, for shutdown.
func (m *Manager) Close() {
	m.cancel()
	for _, id := range m.order {
		s := m.sessions[id]
		s.mu.Lock()
		if s.handle != nil {
			m.retire(s)
			s.setStatus(domainAccount.StatusDisconnected)
		}
		s.mu.Unlock()
	}
	logrus.Info("[SESSION] All sessions closed")
}
