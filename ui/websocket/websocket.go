package websocket

import (
	"time"

	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/AzielCF/wa-gateway/pkg/eventhub"
	"github.com/AzielCF/wa-gateway/ui/rest"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

// RegisterRoutes mounts /ws, a websocket mirror of /events/stream. Frames are
// the JSON encoding of event.Event.
func RegisterRoutes(app fiber.Router, hub *eventhub.Hub, heartbeat time.Duration) {
	if heartbeat <= 0 {
		heartbeat = rest.DefaultHeartbeatInterval
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		filter := event.NewFilter(rest.SplitList(conn.Query("accounts")), rest.SplitList(conn.Query("events")))
		serve(conn, hub, filter, heartbeat)
	}))
}

func serve(conn *websocket.Conn, hub *eventhub.Hub, filter event.Filter, heartbeat time.Duration) {
	sub := hub.Subscribe()
	log := logrus.WithField("sub_id", sub.ID)
	log.Debug("[WS] Connection registered")

	defer func() {
		hub.Unsubscribe(sub)
		_ = conn.Close()
		log.Debug("[WS] Connection unregistered")
	}()

	// The read loop only exists to notice the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Debug("[WS] Read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case evt, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !filter.Match(evt) {
				continue
			}
			if err := write(conn, evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(conn, event.New(event.TypeHeartbeat, "", nil)); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, evt event.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(evt); err != nil {
		logrus.WithError(err).Debug("[WS] Write error")
		return err
	}
	return nil
}
