// Package remote exposes a ledger.Book over HTTP and provides a retrying
// client that implements ledger.Ledger against it.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// Header names shared by server and client.
const (
	HeaderPlayer      = "X-Player"
	HeaderIdempotency = "Idempotency-Key"
	HeaderRequestID   = "X-Request-Id"
)

const (
	requestTimeout = 30 * time.Second
	pingInterval   = 25 * time.Second
	readWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	catchUpBatch   = 500
)

// Server handles ledger HTTP requests.
type Server struct {
	book      ledger.Book
	logger    *log.Logger
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewServer creates a relay over book. A nil logger discards output.
func NewServer(book ledger.Book, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		book:   book,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Terminal clients send no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	// Long-lived stream, kept outside the request timeout.
	r.Get("/api/v1/events/ws", s.handleEventStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/health", s.handleHealth)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/events", s.handleEvents)
			r.Post("/operators", s.handleSetOperator)

			r.Post("/rounds", s.handleCreateRound)
			r.Get("/rounds/latest", s.handleLatestRound)
			r.Route("/rounds/{round}", func(r chi.Router) {
				r.Get("/", s.handleRound)
				r.Post("/finalize", s.handleFinalize)
				r.Get("/players", s.handlePlayers)
				r.Get("/standings", s.handleStandings)
				r.Get("/players/{player}/counters", s.handleCounters)
				r.Get("/players/{player}/score", s.handleScore)
				r.Post("/entries", s.handleStartEntry)
				r.Post("/attempts", s.handleStartAttempt)
				r.Post("/attempts/end", s.handleEndAttempt)
				r.Post("/scores", s.handleSubmitScore)
				r.Post("/obstacles", s.handleObstaclePassed)
			})
		})
	})

	return r
}

// logRequests logs each request with charmbracelet/log.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"dur", time.Since(start).Round(time.Microsecond),
			"player", r.Header.Get(HeaderPlayer),
			"req_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON writes a JSON response with proper headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

// writeError writes the error envelope. Ledger rejections carry their code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := ledger.Code(err)
	if code == "" {
		code = "internal"
		if status < 500 {
			code = "bad_request"
		}
	}
	if status >= 500 {
		s.logger.Error("ledger call failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorBody{
		Code:      code,
		Message:   err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// caller resolves the acting account and the write context.
func (s *Server) caller(r *http.Request) (ledger.Ledger, context.Context, error) {
	addr, err := ledger.ParseAddress(r.Header.Get(HeaderPlayer))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errNoCaller, err)
	}
	ctx := ledger.WithBatchKey(r.Context(), r.Header.Get(HeaderIdempotency))
	return s.book.Account(addr), ctx, nil
}

// reader returns an account for read-only calls; the caller is optional.
func (s *Server) reader(r *http.Request) ledger.Ledger {
	addr, err := ledger.ParseAddress(r.Header.Get(HeaderPlayer))
	if err != nil {
		addr = ""
	}
	return s.book.Account(addr)
}

func roundParam(r *http.Request) (ledger.RoundID, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "round"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: round id %q", errBadRequest, chi.URLParam(r, "round"))
	}
	return ledger.RoundID(id), nil
}

func playerParam(r *http.Request) (ledger.Address, error) {
	addr, err := ledger.ParseAddress(chi.URLParam(r, "player"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return addr, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// Request and response bodies.
type (
	createRoundRequest struct {
		EntryFee    decimal.Decimal `json:"entryFee"`
		DurationSec int64           `json:"durationSec"`
	}
	roundIDResponse struct {
		ID    ledger.RoundID `json:"id"`
		Found bool           `json:"found"`
	}
	entryRequest struct {
		Payment decimal.Decimal `json:"payment"`
	}
	entryResponse struct {
		Entry uint32 `json:"entry"`
	}
	scoreRequest struct {
		Amount uint64 `json:"amount"`
	}
	obstacleRequest struct {
		Player        ledger.Address `json:"player"`
		Entry         uint32         `json:"entry"`
		ObstacleCount uint32         `json:"obstacleCount"`
		Delta         uint64         `json:"delta"`
	}
	operatorRequest struct {
		Operator ledger.Address `json:"operator"`
		Allowed  bool           `json:"allowed"`
	}
	scoreResponse struct {
		Score uint64 `json:"score"`
	}
	okResponse struct {
		OK bool `json:"ok"`
	}
)

func (s *Server) handleCreateRound(w http.ResponseWriter, r *http.Request) {
	acct, ctx, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createRoundRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := acct.CreateRound(ctx, req.EntryFee, time.Duration(req.DurationSec)*time.Second)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("round created", "round", id, "creator", acct.Account(), "fee", req.EntryFee)
	s.writeJSON(w, http.StatusCreated, roundIDResponse{ID: id, Found: true})
}

func (s *Server) handleLatestRound(w http.ResponseWriter, r *http.Request) {
	id, ok, err := s.reader(r).LatestRound(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, roundIDResponse{ID: id, Found: ok})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	id, err := roundParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	round, err := s.reader(r).Round(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, round)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, func(ctx context.Context, acct ledger.Ledger, id ledger.RoundID) (any, error) {
		return nil, acct.FinalizeRound(ctx, id)
	})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	id, err := roundParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	players, err := s.reader(r).Players(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if players == nil {
		players = []ledger.Address{}
	}
	s.writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	id, err := roundParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := ledger.Standings(r.Context(), s.reader(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []ledger.Standing{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	id, err := roundParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	player, err := playerParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := ledger.ReadCounters(r.Context(), s.reader(r), id, player)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	id, err := roundParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	player, err := playerParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := s.reader(r).Score(r.Context(), id, player)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scoreResponse{Score: score})
}

func (s *Server) handleStartEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.write(w, r, func(ctx context.Context, acct ledger.Ledger, id ledger.RoundID) (any, error) {
		entry, err := acct.StartEntry(ctx, id, req.Payment)
		return entryResponse{Entry: entry}, err
	})
}

func (s *Server) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, func(ctx context.Context, acct ledger.Ledger, id ledger.RoundID) (any, error) {
		return nil, acct.StartAttempt(ctx, id)
	})
}

func (s *Server) handleEndAttempt(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, func(ctx context.Context, acct ledger.Ledger, id ledger.RoundID) (any, error) {
		return nil, acct.EndAttempt(ctx, id)
	})
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.write(w, r, func(ctx context.Context, acct ledger.Ledger, id ledger.RoundID) (any, error) {
		return nil, acct.SubmitScoreBatch(ctx, id, req.Amount)
	})
}

func (s *Server) handleObstaclePassed(w http.ResponseWriter, r *http.Request) {
	var req obstacleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.write(w, r, func(ctx context.Context, acct ledger.Ledger, id ledger.RoundID) (any, error) {
		return nil, acct.ObstaclePassed(ctx, id, req.Player, req.Entry, req.ObstacleCount, req.Delta)
	})
}

func (s *Server) handleSetOperator(w http.ResponseWriter, r *http.Request) {
	acct, ctx, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req operatorRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := acct.SetOperator(ctx, req.Operator, req.Allowed); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// write runs a round-scoped write as the caller and responds with the
// call's result, or a plain ok when it has none.
func (s *Server) write(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, acct ledger.Ledger, id ledger.RoundID) (any, error)) {
	acct, ctx, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := roundParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := fn(ctx, acct, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if result == nil {
		result = okResponse{OK: true}
	}
	s.writeJSON(w, http.StatusOK, result)
}
