package remote

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

const subscribeBuffer = 64

// Subscribe streams relay events over a websocket. The stream reconnects
// with backoff and resumes after the last event it delivered.
func (c *Client) Subscribe() (<-chan ledger.Event, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan ledger.Event, subscribeBuffer)
	go c.stream(ctx, out)
	return out, cancel
}

func (c *Client) streamURL(after uint64) string {
	base := c.config.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	q.Set("after", strconv.FormatUint(after, 10))
	return base + "/api/v1/events/ws?" + q.Encode()
}

func (c *Client) stream(ctx context.Context, out chan ledger.Event) {
	defer close(out)

	// Start from the current head so subscribers only see new events.
	var after uint64
	if head, err := c.EventsSince(ctx, 0, 0); err == nil {
		for len(head) > 0 {
			after = head[len(head)-1].Seq
			if head, err = c.EventsSince(ctx, after, 0); err != nil {
				break
			}
		}
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay(min(attempt, 8))):
			}
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(after), nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("event stream dial failed", "error", err)
			continue
		}
		attempt = 0

		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()

		for {
			var e ledger.Event
			if err := conn.ReadJSON(&e); err != nil {
				break
			}
			after = e.Seq
			deliver(out, e)
		}
		close(stop)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

// deliver sends without blocking, dropping the oldest event when full.
func deliver(out chan ledger.Event, e ledger.Event) {
	select {
	case out <- e:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- e:
	default:
	}
}
