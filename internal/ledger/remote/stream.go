package remote

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

func afterParam(r *http.Request) uint64 {
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	return after
}

// handleEvents returns retained events after the given sequence number.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > catchUpBatch {
		limit = catchUpBatch
	}
	events, err := s.book.EventsSince(r.Context(), afterParam(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []ledger.Event{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

// handleEventStream upgrades to a websocket, replays events after the
// given sequence number, then forwards live events in order.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Subscribe before catching up so nothing falls between the two.
	live, cancel := s.book.Subscribe()
	defer cancel()

	last := afterParam(r)
	for {
		batch, err := s.book.EventsSince(r.Context(), last, catchUpBatch)
		if err != nil {
			s.logger.Warn("event catch-up failed", "error", err)
			return
		}
		for _, e := range batch {
			if err := writeEvent(conn, e); err != nil {
				return
			}
			last = e.Seq
		}
		if len(batch) < catchUpBatch {
			break
		}
	}

	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	// The client never sends data; reading surfaces close frames and pongs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case e, ok := <-live:
			if !ok {
				return
			}
			if e.Seq <= last {
				continue
			}
			if err := writeEvent(conn, e); err != nil {
				return
			}
			last = e.Seq
		}
	}
}

func writeEvent(conn *websocket.Conn, e ledger.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}
