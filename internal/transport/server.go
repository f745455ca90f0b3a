// Package transport serves unit engines to learners over websockets and
// exposes read-only HTTP views of units and learner progress.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/engine"
	"github.com/p-n-ai/pai-unit/internal/notify"
)

// Units looks up loaded unit definitions.
type Units interface {
	GetUnit(id string) (*content.Unit, bool)
	UnitIDs() []string
}

// Options configures a Server.
type Options struct {
	// Engine is the base engine configuration. LearnerID, Languages and Rand
	// are set per learner; Sink receives every notification besides the
	// learner's own connections.
	Engine engine.Config
	// TickInterval is how often open connections evaluate time limits.
	// Zero disables server-side ticks.
	TickInterval time.Duration
	// OriginPatterns are extra host patterns allowed to open websockets.
	OriginPatterns []string
}

// Server keeps one engine per unit and learner. Connections of the same
// learner share it.
type Server struct {
	units Units
	opts  Options

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

type sessionKey struct {
	unit    string
	learner string
}

// NewServer creates a transport server over units.
func NewServer(units Units, opts Options) *Server {
	return &Server{
		units:    units,
		opts:     opts,
		sessions: make(map[sessionKey]*session),
	}
}

// Register adds the websocket and HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.ServeWS)
	mux.HandleFunc("GET /units", s.handleUnits)
	mux.HandleFunc("GET /units/{unit}", s.handleUnit)
	mux.HandleFunc("GET /units/{unit}/learners/{learner}", s.handleProgress)
	mux.HandleFunc("GET /units/{unit}/learners/{learner}/review.xlsx", s.handleExport)
}

// session returns the engine of a learner, creating it on first use.
func (s *Server) session(unitID, learnerID string, langs []language.Tag) (*session, error) {
	key := sessionKey{unit: unitID, learner: learnerID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}

	u, ok := s.units.GetUnit(unitID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownUnit, unitID)
	}

	sess := &session{
		learner: learnerID,
		langs:   langs,
		conns:   make(map[*conn]struct{}),
	}
	sinks := notify.MultiSink{sess}
	if s.opts.Engine.Sink != nil {
		sinks = notify.MultiSink{s.opts.Engine.Sink, sess}
	}

	cfg := s.opts.Engine
	cfg.LearnerID = learnerID
	cfg.Languages = langs
	cfg.Sink = sinks
	cfg.Rand = nil
	eng, err := engine.New(u, cfg)
	if err != nil {
		return nil, err
	}
	sess.eng = eng
	s.sessions[key] = sess

	slog.Info("learner session created", "unit_id", unitID, "learner_id", learnerID)
	return sess, nil
}

func (s *Server) lookup(unitID, learnerID string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey{unit: unitID, learner: learnerID}]
	return sess, ok
}

// session serializes the events of one learner and fans notifications out to
// the learner's open connections.
type session struct {
	learner string
	langs   []language.Tag

	mu  sync.Mutex
	eng *engine.Engine

	connMu sync.Mutex
	conns  map[*conn]struct{}
}

func (ss *session) submit(ctx context.Context, ev engine.Event) engine.Result {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	res, _ := ss.eng.Submit(ctx, ev)
	return res
}

func (ss *session) tick(ctx context.Context, now time.Time) engine.Result {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.eng.Tick(ctx, now)
}

func (ss *session) attach(c *conn) {
	ss.connMu.Lock()
	defer ss.connMu.Unlock()
	ss.conns[c] = struct{}{}
}

func (ss *session) detach(c *conn) {
	ss.connMu.Lock()
	defer ss.connMu.Unlock()
	delete(ss.conns, c)
}

// Notify forwards a notification to every open connection of the learner.
func (ss *session) Notify(_ context.Context, n notify.Notification) error {
	ss.connMu.Lock()
	defer ss.connMu.Unlock()
	for c := range ss.conns {
		c.send(Envelope{Type: TypeNotification, Notification: &n})
	}
	return nil
}
