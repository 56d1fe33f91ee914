package session

import (
	"context"
	"errors"
	"sync"
	"time"

	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/AzielCF/wa-gateway/integrations/webhook"
)

type sentMessage struct {
	To   string
	Text string
}

// fakeClient is a scriptable ProtocolClient.
type fakeClient struct {
	mu sync.Mutex

	paired     bool
	connected  bool
	connectErr error
	qrErr      error
	logoutErr  error
	sendErr    error

	connectCalls    int
	disconnectCalls int
	logoutCalls     int
	qrBeforeConnect bool
	sent            []sentMessage

	handler EventHandler
	qrCh    chan QRItem
}

func newFakeClient() *fakeClient {
	return &fakeClient{qrCh: make(chan QRItem, 8)}
}

func (f *fakeClient) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	f.connected = false
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeClient) SendMessage(ctx context.Context, destination, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{To: destination, Text: text})
	return nil
}

func (f *fakeClient) GetQRChannel(ctx context.Context) (<-chan QRItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	f.qrBeforeConnect = f.connectCalls == 0
	return f.qrCh, nil
}

func (f *fakeClient) AddEventHandler(handler EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *fakeClient) IsPaired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paired
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// emit delivers evt through the registered handler, as the protocol would.
// A connected event also marks the device as paired.
func (f *fakeClient) emit(evt any) {
	f.mu.Lock()
	if _, ok := evt.(*ConnectedEvent); ok {
		f.paired = true
	}
	h := f.handler
	f.mu.Unlock()
	h(evt)
}

func (f *fakeClient) setConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *fakeClient) setConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

func (f *fakeClient) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

func (f *fakeClient) disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnectCalls
}

func (f *fakeClient) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// fakeFactory hands out clients built by newClient and remembers them.
type fakeFactory struct {
	mu        sync.Mutex
	err       error
	newClient func() *fakeClient
	clients   []*fakeClient
}

func (f *fakeFactory) build(ctx context.Context, accountID string) (ProtocolClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeClient()
	if f.newClient != nil {
		c = f.newClient()
	}
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) last() *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Broadcast(evt event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) lastOf(t event.Type) (event.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == t {
			return p.events[i], true
		}
	}
	return event.Event{}, false
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeForwarder struct {
	mu       sync.Mutex
	replies  []string
	err      error
	received []webhook.Message
}

func (f *fakeForwarder) Enabled(accountID string) bool { return true }

func (f *fakeForwarder) Forward(ctx context.Context, msg webhook.Message) (*webhook.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, msg)
	if f.err != nil {
		return nil, f.err
	}
	resp := &webhook.Response{Success: true}
	for _, r := range f.replies {
		resp.Messages = append(resp.Messages, webhook.Reply{Response: r})
	}
	return resp, nil
}

func (f *fakeForwarder) messages() []webhook.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webhook.Message(nil), f.received...)
}

var errBoom = errors.New("boom")

type harness struct {
	manager   *Manager
	factory   *fakeFactory
	events    *recordingPublisher
	clock     *testClock
	forwarder *fakeForwarder
}

func newHarness(opts Options) *harness {
	h := &harness{
		factory:   &fakeFactory{},
		events:    &recordingPublisher{},
		clock:     &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		forwarder: &fakeForwarder{},
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 20 * time.Millisecond
	}
	if opts.Forwarder == nil {
		opts.Forwarder = h.forwarder
	}
	opts.Clock = h.clock.Now

	accounts := []domainAccount.Account{
		{ID: "acct-1", DisplayName: "Sales Bot", Type: "whatsapp"},
		{ID: "acct-2", DisplayName: "Support Bot", Type: "whatsapp"},
	}
	h.manager = NewManager(accounts, h.factory.build, h.events, opts)
	return h
}
