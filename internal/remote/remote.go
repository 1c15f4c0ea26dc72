// Package remote exposes playback control over HTTP so a phone or a second
// machine can pause, seek and change settings.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type CommandKind int

const (
	CmdPause CommandKind = iota
	CmdResume
	CmdToggle
	CmdSeek
	CmdSpeed
	CmdOffset
	CmdPlayAlong
)

func (k CommandKind) String() string {
	switch k {
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdToggle:
		return "toggle"
	case CmdSeek:
		return "seek"
	case CmdSpeed:
		return "speed"
	case CmdOffset:
		return "offset"
	case CmdPlayAlong:
		return "playalong"
	default:
		return "unknown"
	}
}

// Command is one queued request. Only the field matching Kind is set.
type Command struct {
	Kind     CommandKind
	Fraction float64
	Speed    float64
	Offset   time.Duration
	Enabled  bool
}

// Status is the JSON body of GET /status.
type Status struct {
	Session    string  `json:"session"`
	Song       string  `json:"song,omitempty"`
	Seconds    float64 `json:"seconds"`
	Duration   float64 `json:"duration"`
	Percentage float64 `json:"percentage"`
	Paused     bool    `json:"paused"`
	Waiting    bool    `json:"waiting"`
	Finished   bool    `json:"finished"`
	Speed      float64 `json:"speed"`
	OffsetMS   int64   `json:"offset_ms"`
	PlayAlong  bool    `json:"play_along"`
	Required   []int   `json:"required"`
}

// Target is what commands act on.
type Target interface {
	Pause()
	Resume()
	PauseResume()
	SeekToFraction(f float64)
	AdjustSpeed(delta float64) float64
	AdjustOffset(delta time.Duration) time.Duration
	SetPlayAlong(enabled bool)
}

// Apply runs c against t.
func Apply(c Command, t Target) {
	switch c.Kind {
	case CmdPause:
		t.Pause()
	case CmdResume:
		t.Resume()
	case CmdToggle:
		t.PauseResume()
	case CmdSeek:
		t.SeekToFraction(c.Fraction)
	case CmdSpeed:
		t.AdjustSpeed(c.Speed)
	case CmdOffset:
		t.AdjustOffset(c.Offset)
	case CmdPlayAlong:
		t.SetPlayAlong(c.Enabled)
	}
}

var ErrQueueFull = errors.New("remote: command queue full")

type Option func(*Server)

func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server queues commands for the frame loop and answers status from a
// snapshot function. It never touches playback state itself.
type Server struct {
	status  func() Status
	cmds    chan Command
	origins []string
	log     *slog.Logger
	handler http.Handler
}

func New(status func() Status, opts ...Option) *Server {
	s := &Server{
		status:  status,
		cmds:    make(chan Command, 32),
		origins: []string{"*"},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/pause", s.simple(CmdPause)).Methods(http.MethodPost)
	r.HandleFunc("/resume", s.simple(CmdResume)).Methods(http.MethodPost)
	r.HandleFunc("/toggle", s.simple(CmdToggle)).Methods(http.MethodPost)
	r.HandleFunc("/seek", s.handleSeek).Methods(http.MethodPost).Queries("fraction", "{fraction}")
	r.HandleFunc("/speed", s.handleSpeed).Methods(http.MethodPost).Queries("delta", "{delta}")
	r.HandleFunc("/offset", s.handleOffset).Methods(http.MethodPost).Queries("delta", "{delta}")
	r.HandleFunc("/playalong", s.handlePlayAlong).Methods(http.MethodPost).Queries("enabled", "{enabled}")
	s.handler = cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(r)
	return s
}

// Commands is drained by the frame loop.
func (s *Server) Commands() <-chan Command { return s.cmds }

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("remote control listening", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return fmt.Errorf("remote: %w", err)
	}
}

func (s *Server) enqueue(w http.ResponseWriter, c Command) {
	select {
	case s.cmds <- c:
	default:
		http.Error(w, ErrQueueFull.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Debug("remote command", "kind", c.Kind)
	writeJSON(w, http.StatusAccepted, map[string]string{"queued": c.Kind.String()})
}

func (s *Server) simple(kind CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.enqueue(w, Command{Kind: kind})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	f, err := parseFinite(mux.Vars(r)["fraction"])
	if err != nil {
		http.Error(w, "fraction must be a number", http.StatusBadRequest)
		return
	}
	s.enqueue(w, Command{Kind: CmdSeek, Fraction: f})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	d, err := parseFinite(mux.Vars(r)["delta"])
	if err != nil {
		http.Error(w, "delta must be a number", http.StatusBadRequest)
		return
	}
	s.enqueue(w, Command{Kind: CmdSpeed, Speed: d})
}

// handleOffset accepts a Go duration ("-20ms") or plain seconds ("0.05").
func (s *Server) handleOffset(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["delta"]
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, ferr := parseFinite(raw)
		if ferr != nil || math.Abs(secs*float64(time.Second)) >= math.MaxInt64 {
			http.Error(w, "delta must be a duration or seconds", http.StatusBadRequest)
			return
		}
		d = time.Duration(secs * float64(time.Second))
	}
	s.enqueue(w, Command{Kind: CmdOffset, Offset: d})
}

func (s *Server) handlePlayAlong(w http.ResponseWriter, r *http.Request) {
	on, err := strconv.ParseBool(mux.Vars(r)["enabled"])
	if err != nil {
		http.Error(w, "enabled must be true or false", http.StatusBadRequest)
		return
	}
	s.enqueue(w, Command{Kind: CmdPlayAlong, Enabled: on})
}

// parseFinite is strconv.ParseFloat without NaN and the infinities.
func parseFinite(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
