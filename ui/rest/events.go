package rest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/AzielCF/wa-gateway/pkg/eventhub"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const DefaultHeartbeatInterval = 30 * time.Second

type Events struct {
	Hub       *eventhub.Hub
	Heartbeat time.Duration
}

func InitRestEvents(app fiber.Router, hub *eventhub.Hub, heartbeat time.Duration) Events {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	handler := Events{Hub: hub, Heartbeat: heartbeat}
	app.Get("/events/stream", handler.Stream)
	return handler
}

// SplitList parses a comma separated query value, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Stream serves server-sent events until the client goes away. A failed
// write (event or heartbeat) is how a disconnect is noticed.
func (h *Events) Stream(c *fiber.Ctx) error {
	filter := event.NewFilter(SplitList(c.Query("accounts")), SplitList(c.Query("events")))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.Hub.Subscribe()
	heartbeat := h.Heartbeat
	log := logrus.WithFields(logrus.Fields{"sub_id": sub.ID, "remote": c.IP()})
	log.Info("[EVENTS] SSE client connected")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.Hub.Unsubscribe(sub)
			log.Info("[EVENTS] SSE client disconnected")
		}()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		fmt.Fprint(w, ": stream open\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				if !filter.Match(evt) {
					continue
				}
				if err := WriteSSE(w, evt); err != nil {
					return
				}
			case <-ticker.C:
				if err := WriteSSE(w, event.New(event.TypeHeartbeat, "", nil)); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// WriteSSE writes one "event:/data:" frame and flushes it.
func WriteSSE(w *bufio.Writer, evt event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
