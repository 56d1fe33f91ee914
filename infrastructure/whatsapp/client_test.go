package whatsapp

import (
	"errors"
	"testing"
	"time"

	"github.com/AzielCF/wa-gateway/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestParseJID(t *testing.T) {
	jid, err := ParseJID("5511999999999")
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", jid.User)
	assert.Equal(t, types.DefaultUserServer, jid.Server)

	jid, err = ParseJID("120363025246125486@g.us")
	require.NoError(t, err)
	assert.Equal(t, types.GroupServer, jid.Server)

	_, err = ParseJID("  ")
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "", extractText(nil))
	assert.Equal(t, "hi", extractText(&waE2E.Message{Conversation: proto.String("hi")}))
	assert.Equal(t, "quoted", extractText(&waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted")},
	}))
	assert.Equal(t, "", extractText(&waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{Caption: proto.String("pic")},
	}))
}

func TestToQRItem(t *testing.T) {
	item := toQRItem(whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@abc", Timeout: 20 * time.Second})
	assert.Equal(t, session.QRItem{Event: session.QREventCode, Code: "2@abc", Timeout: 20 * time.Second}, item)

	assert.Equal(t, session.QREventSuccess, toQRItem(whatsmeow.QRChannelSuccess).Event)
	assert.Equal(t, session.QREventTimeout, toQRItem(whatsmeow.QRChannelTimeout).Event)

	boom := errors.New("boom")
	item = toQRItem(whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventError, Error: boom})
	assert.Equal(t, session.QREventError, item.Event)
	assert.ErrorIs(t, item.Err, boom)

	item = toQRItem(whatsmeow.QRChannelClientOutdated)
	assert.Equal(t, session.QREventError, item.Event)
	assert.Error(t, item.Err)
}

func TestTranslateEvent(t *testing.T) {
	c := newClient("acct-1", &whatsmeow.Client{})

	assert.Equal(t, &session.ConnectedEvent{}, c.translateEvent(&events.Connected{}))
	assert.Equal(t, &session.DisconnectedEvent{Reason: "connection_lost"}, c.translateEvent(&events.Disconnected{}))
	assert.Equal(t, &session.DisconnectedEvent{Reason: session.ReasonStreamReplaced}, c.translateEvent(&events.StreamReplaced{}))

	out, ok := c.translateEvent(&events.LoggedOut{}).(*session.LoggedOutEvent)
	require.True(t, ok)
	assert.NotNil(t, out)

	assert.Nil(t, c.translateEvent(&events.Receipt{}))

	assert.Nil(t, c.translateEvent(&events.KeepAliveTimeout{ErrorCount: 1, LastSuccess: time.Now()}))
	assert.Equal(t,
		&session.DisconnectedEvent{Reason: session.ReasonKeepAliveTimeout},
		c.translateEvent(&events.KeepAliveTimeout{ErrorCount: 9, LastSuccess: time.Now().Add(-whatsmeow.KeepAliveMaxFailTime - time.Minute)}),
	)
	assert.Nil(t, c.translateEvent(&events.KeepAliveRestored{}))

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:   types.NewJID("5511999999999", types.DefaultUserServer),
				Sender: types.NewJID("5511999999999", types.DefaultUserServer),
			},
			ID:        "ABCD",
			Timestamp: ts,
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	}
	got, ok := c.translateEvent(msg).(*session.MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "ABCD", got.ID)
	assert.Equal(t, "5511999999999@s.whatsapp.net", got.Chat)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, ts, got.Timestamp)
	assert.False(t, got.FromMe)

	media := &events.Message{Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}}
	assert.Nil(t, c.translateEvent(media))
}
