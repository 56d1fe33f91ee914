package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/wa-gateway/session"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// Client adapts a whatsmeow client to session.ProtocolClient. It is the only
// place that knows about whatsmeow event and message types.
type Client struct {
	accountID string
	client    *whatsmeow.Client
}

func newClient(accountID string, client *whatsmeow.Client) *Client {
	return &Client{accountID: accountID, client: client}
}

func (c *Client) Connect() error {
	return c.client.Connect()
}

func (c *Client) Disconnect() {
	c.client.Disconnect()
}

func (c *Client) Logout(ctx context.Context) error {
	if c.client.Store == nil || c.client.Store.ID == nil {
		return nil
	}
	return c.client.Logout(ctx)
}

func (c *Client) IsPaired() bool {
	return c.client.Store != nil && c.client.Store.ID != nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) SendMessage(ctx context.Context, destination, text string) error {
	jid, err := ParseJID(destination)
	if err != nil {
		return err
	}
	_, err = c.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (c *Client) GetQRChannel(ctx context.Context) (<-chan session.QRItem, error) {
	raw, err := c.client.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan session.QRItem, 1)
	go func() {
		defer close(out)
		for item := range raw {
			out <- toQRItem(item)
		}
	}()
	return out, nil
}

func (c *Client) AddEventHandler(handler session.EventHandler) {
	c.client.AddEventHandler(func(rawEvt interface{}) {
		if evt := c.translateEvent(rawEvt); evt != nil {
			handler(evt)
		}
	})
}

func toQRItem(item whatsmeow.QRChannelItem) session.QRItem {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		return session.QRItem{Event: session.QREventCode, Code: item.Code, Timeout: item.Timeout}
	case whatsmeow.QRChannelSuccess.Event:
		return session.QRItem{Event: session.QREventSuccess}
	case whatsmeow.QRChannelTimeout.Event:
		return session.QRItem{Event: session.QREventTimeout}
	default:
		err := item.Error
		if err == nil {
			err = fmt.Errorf("qr channel: %s", item.Event)
		}
		return session.QRItem{Event: session.QREventError, Err: err}
	}
}

// translateEvent maps whatsmeow events onto session events. Events the
// gateway does not care about map to nil.
func (c *Client) translateEvent(rawEvt interface{}) any {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		connected := &session.ConnectedEvent{}
		if c.client.Store != nil && c.client.Store.ID != nil {
			connected.JID = c.client.Store.ID.String()
		}
		return connected
	case *events.PairSuccess:
		logrus.WithFields(logrus.Fields{
			"account_id": c.accountID,
			"jid":        evt.ID.String(),
		}).Info("[WHATSAPP] Device paired")
		return nil
	case *events.Disconnected:
		return &session.DisconnectedEvent{Reason: "connection_lost"}
	case *events.StreamReplaced:
		return &session.DisconnectedEvent{Reason: session.ReasonStreamReplaced}
	case *events.ConnectFailure:
		return &session.DisconnectedEvent{Reason: fmt.Sprintf("connect_failure: %s", evt.Reason.String())}
	case *events.LoggedOut:
		return &session.LoggedOutEvent{Reason: evt.Reason.String()}
	case *events.KeepAliveTimeout:
		// whatsmeow only forces a reconnect itself when auto-reconnect is on.
		if time.Since(evt.LastSuccess) > whatsmeow.KeepAliveMaxFailTime {
			return &session.DisconnectedEvent{Reason: session.ReasonKeepAliveTimeout}
		}
		logrus.WithFields(logrus.Fields{
			"account_id":  c.accountID,
			"error_count": evt.ErrorCount,
		}).Debug("[WHATSAPP] Keepalive failed")
		return nil
	case *events.KeepAliveRestored:
		logrus.WithField("account_id", c.accountID).Debug("[WHATSAPP] Keepalive restored")
		return nil
	case *events.Message:
		if msg := toMessageEvent(evt); msg != nil {
			return msg
		}
		return nil
	default:
		return nil
	}
}

func toMessageEvent(evt *events.Message) *session.MessageEvent {
	text := extractText(evt.Message)
	if text == "" {
		return nil
	}
	return &session.MessageEvent{
		ID:        evt.Info.ID,
		Chat:      evt.Info.Chat.String(),
		Sender:    evt.Info.Sender.ToNonAD().String(),
		Text:      text,
		FromMe:    evt.Info.IsFromMe,
		Timestamp: evt.Info.Timestamp,
	}
}

// extractText returns the plain text body of a message, or "" for media,
// reactions and protocol messages.
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if conv := msg.GetConversation(); conv != "" {
		return conv
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

// ParseJID accepts a full JID or a bare phone number.
func ParseJID(destination string) (types.JID, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return types.EmptyJID, fmt.Errorf("empty destination")
	}
	if strings.Contains(destination, "@") {
		return types.ParseJID(destination)
	}
	return types.NewJID(destination, types.DefaultUserServer), nil
}
