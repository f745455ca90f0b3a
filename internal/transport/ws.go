package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/engine"
	"github.com/p-n-ai/pai-unit/internal/notify"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

// Envelope types sent to clients.
const (
	TypeSnapshot     = "snapshot"
	TypeResult       = "result"
	TypeTick         = "tick"
	TypeNotification = "notification"
)

// Envelope is one message written to a websocket client.
type Envelope struct {
	Type         string               `json:"type"`
	Snapshot     []completion.Status  `json:"snapshot,omitempty"`
	Result       *engine.Result       `json:"result,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

type conn struct {
	learner string
	out     chan Envelope
}

// send queues env without blocking. A client that stops reading loses
// messages rather than stalling the engine.
func (c *conn) send(env Envelope) {
	select {
	case c.out <- env:
	default:
		slog.Warn("websocket send buffer full, dropping message",
			"learner_id", c.learner,
			"type", env.Type,
		)
	}
}

// ServeWS upgrades to a websocket bound to the engine of ?unit= and
// ?learner=. Clients send engine events as JSON and receive envelopes.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unitID, learnerID := q.Get("unit"), q.Get("learner")
	if unitID == "" || learnerID == "" {
		writeError(w, http.StatusBadRequest, "unit and learner are required")
		return
	}

	sess, err := s.session(unitID, learnerID, preferredLanguages(r))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer ws.CloseNow()

	c := &conn{learner: learnerID, out: make(chan Envelope, sendBuffer)}
	sess.mu.Lock()
	sess.attach(c)
	c.send(Envelope{Type: TypeSnapshot, Snapshot: sess.eng.Snapshot()})
	sess.mu.Unlock()
	defer sess.detach(c)

	slog.Info("websocket connected", "unit_id", unitID, "learner_id", learnerID)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return s.readLoop(ctx, ws, sess, c) })
	g.Go(func() error { return s.writeLoop(ctx, ws, c) })
	if s.opts.TickInterval > 0 {
		g.Go(func() error { return s.tickLoop(ctx, sess, c) })
	}
	logClose(unitID, learnerID, g.Wait())
}

// readLoop submits client events until the connection fails or closes.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, sess *session, c *conn) error {
	for {
		var ev engine.Event
		if err := wsjson.Read(ctx, ws, &ev); err != nil {
			return err
		}
		res := sess.submit(ctx, ev)
		c.send(Envelope{Type: TypeResult, Result: &res})
	}
}

func (s *Server) writeLoop(ctx context.Context, ws *websocket.Conn, c *conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, ws, env)
			cancel()
			if err != nil {
				return fmt.Errorf("writing %s: %w", env.Type, err)
			}
		}
	}
}

func (s *Server) tickLoop(ctx context.Context, sess *session, c *conn) error {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if res := sess.tick(ctx, now); res.Accepted {
				c.send(Envelope{Type: TypeTick, Result: &res})
			}
		}
	}
}

func logClose(unitID, learnerID string, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		slog.Info("websocket closed", "unit_id", unitID, "learner_id", learnerID)
	default:
		if errors.Is(err, context.Canceled) {
			slog.Info("websocket closed", "unit_id", unitID, "learner_id", learnerID)
			return
		}
		slog.Warn("websocket connection failed", "unit_id", unitID, "learner_id", learnerID, "error", err)
	}
}

// preferredLanguages reads ?lang= or the Accept-Language header.
func preferredLanguages(r *http.Request) []language.Tag {
	raw := r.URL.Query().Get("lang")
	if raw == "" {
		raw = r.Header.Get("Accept-Language")
	}
	if raw == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil {
		slog.Debug("ignoring malformed language preference", "value", raw, "error", err)
		return nil
	}
	return tags
}
