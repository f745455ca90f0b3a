// Package engine runs one unit for one learner. It routes learner events to
// the completion tracker, the questionnaires and the navigation coordinator,
// and delivers every resulting transition and part outcome to a sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/navigation"
	"github.com/p-n-ai/pai-unit/internal/notify"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

// Config holds the dependencies and policy of an engine.
type Config struct {
	LearnerID      string
	ScoreMode      questionnaire.ScoreMode
	CountAbandoned bool
	// Languages orders the learner's preferred languages for text.
	Languages []language.Tag
	Sink      notify.Sink
	Now       func() time.Time
	Rand      *rand.Rand
}

// Engine holds the runtime state of one unit for one learner. It is not safe
// for concurrent use; callers serialize events.
type Engine struct {
	unit    *content.Unit
	learner string
	langs   []language.Tag
	sink    notify.Sink
	now     func() time.Time

	tracker *completion.Tracker
	nav     *navigation.Coordinator
	quizzes map[string]*questionnaire.Questionnaire
}

// New validates u and builds its runtime. A structurally invalid unit fails
// as a whole.
func New(u *content.Unit, cfg Config) (*Engine, error) {
	if u == nil {
		return nil, fmt.Errorf("unit is nil")
	}
	if err := content.Validate(u); err != nil {
		return nil, err
	}

	sink := cfg.Sink
	if sink == nil {
		sink = notify.NopSink{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	tracker := completion.New(u)
	e := &Engine{
		unit:    u,
		learner: cfg.LearnerID,
		langs:   cfg.Languages,
		sink:    sink,
		now:     now,
		tracker: tracker,
		nav:     navigation.New(tracker),
		quizzes: make(map[string]*questionnaire.Questionnaire),
	}

	opts := questionnaire.Options{
		ScoreMode:      cfg.ScoreMode,
		CountAbandoned: cfg.CountAbandoned,
		Rand:           cfg.Rand,
		Now:            now,
	}
	for _, id := range tracker.BlockIDs(content.KindQuestionnaire) {
		b, _ := tracker.Block(id)
		q, err := questionnaire.New(id, b, opts)
		if err != nil {
			return nil, fmt.Errorf("building questionnaire: %w", err)
		}
		e.quizzes[id] = q
	}

	slog.Debug("engine created",
		"unit_id", u.ID,
		"learner_id", cfg.LearnerID,
		"questionnaires", len(e.quizzes),
	)
	return e, nil
}

// Unit returns the unit definition.
func (e *Engine) Unit() *content.Unit { return e.unit }

// Tracker exposes completion state for inspection.
func (e *Engine) Tracker() *completion.Tracker { return e.tracker }

// Questionnaire returns the runtime of a questionnaire block.
func (e *Engine) Questionnaire(id string) (*questionnaire.Questionnaire, bool) {
	q, ok := e.quizzes[id]
	return q, ok
}

// Submit applies one learner event. A rejected event is reported both in the
// result and as the returned error. Rejections leave the engine unchanged,
// except that a lazily detected time limit still finishes the part; those
// outcomes are delivered with the rejection.
func (e *Engine) Submit(ctx context.Context, ev Event) (Result, error) {
	res := newResult()
	err := e.apply(&res, ev)
	if err != nil {
		slog.Debug("event rejected",
			"unit_id", e.unit.ID,
			"entity_id", ev.TargetID,
			"kind", ev.Kind,
			"error", err,
		)
		res.Error = err.Error()
	} else {
		res.Accepted = true
	}

	if len(res.Transitions) > 0 || len(res.Outcomes) > 0 {
		res.Returns = e.nav.Observe(res.Transitions)
		e.publish(ctx, res)
	}
	return res, err
}

func (e *Engine) apply(res *Result, ev Event) error {
	var tr []completion.Transition
	var err error

	switch ev.Kind {
	case EventVisible:
		tr, err = e.tracker.Visible(ev.TargetID)
	case EventInteracted:
		if _, isQuiz := e.quizzes[ev.TargetID]; isQuiz {
			return fmt.Errorf("%w: questionnaires are interacted with by answering", completion.ErrInvalidTransition)
		}
		tr, err = e.tracker.Interacted(ev.TargetID, ev.Payload.Index)
	case EventCompleted:
		tr, err = e.tracker.Completed(ev.TargetID)
	case EventAction:
		var r navigation.Redirect
		r, tr, err = e.nav.Activate(ev.TargetID, ev.Payload.Index)
		if err == nil {
			res.Redirect = &r
		}
	case EventAttempt, EventBegin, EventAnswer, EventTimeout, EventAbandon, EventFeedback, EventReview:
		return e.applyQuestionnaire(res, ev)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if err != nil {
		return err
	}
	res.Transitions = append(res.Transitions, tr...)
	return nil
}

func (e *Engine) applyQuestionnaire(res *Result, ev Event) error {
	q, ok := e.quizzes[ev.TargetID]
	if !ok {
		if _, known := e.tracker.State(ev.TargetID); known {
			return fmt.Errorf("%w: %s is not a questionnaire", completion.ErrInvalidTransition, ev.TargetID)
		}
		return fmt.Errorf("%w: %s", completion.ErrUnknownEntity, ev.TargetID)
	}
	if s, _ := e.tracker.State(ev.TargetID); s == completion.NotVisible {
		return fmt.Errorf("%w: %s is not visible", completion.ErrInvalidTransition, ev.TargetID)
	}

	switch ev.Kind {
	case EventAttempt:
		s, err := q.StartAttempt()
		if err != nil {
			return err
		}
		e.nextQuestion(res, q, s)
	case EventBegin:
		s, err := current(q)
		if err != nil {
			return err
		}
		if err := s.Begin(); err != nil {
			return err
		}
		e.nextQuestion(res, q, s)
	case EventAnswer:
		s, err := current(q)
		if err != nil {
			return err
		}
		ans, err := s.Answer(ev.Payload.Position, ev.Payload.Response)
		if err != nil {
			if errors.Is(err, questionnaire.ErrTimeLimitExceeded) {
				e.settleQuestionnaire(res, q, s)
				res.Status = statusOf(q)
			}
			return err
		}
		res.Answer = ans
		if ans.FirstPart {
			if err := e.signal(res, q.ID(), completion.SignalInteracted); err != nil {
				return err
			}
		}
		e.nextQuestion(res, q, s)
	case EventTimeout:
		s, err := current(q)
		if err != nil {
			return err
		}
		at := e.now()
		if ev.Payload.At != nil {
			at = *ev.Payload.At
		}
		s.Tick(at)
		e.nextQuestion(res, q, s)
	case EventAbandon:
		if err := q.Abandon(); err != nil {
			return err
		}
	case EventFeedback:
		s, ok := q.Last()
		if !ok {
			return fmt.Errorf("%w: %s has no finished attempt", completion.ErrInvalidTransition, q.ID())
		}
		fb, err := s.Feedback(e.langs...)
		if err != nil {
			return err
		}
		res.Feedback = fb
	case EventReview:
		s, ok := q.Last()
		if !ok {
			return fmt.Errorf("%w: %s has no finished attempt", completion.ErrInvalidTransition, q.ID())
		}
		items, err := s.Review(e.langs...)
		if err != nil {
			return err
		}
		res.Review = items
	}
	res.Status = statusOf(q)
	return nil
}

func current(q *questionnaire.Questionnaire) (*questionnaire.Session, error) {
	s, ok := q.Current()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no attempt in progress", completion.ErrInvalidTransition, q.ID())
	}
	return s, nil
}

// settleQuestionnaire drains part outcomes and, once the attempt is terminal,
// feeds completion and pass signals into the tracker.
func (e *Engine) settleQuestionnaire(res *Result, q *questionnaire.Questionnaire, s *questionnaire.Session) {
	res.Outcomes = append(res.Outcomes, s.DrainOutcomes()...)
	if !s.Terminal() {
		return
	}
	if err := e.signal(res, q.ID(), completion.SignalCompleted); err != nil {
		slog.Warn("completion signal rejected", "entity_id", q.ID(), "error", err)
	}
	if s.Passed() {
		if err := e.signal(res, q.ID(), completion.SignalPassed); err != nil {
			slog.Warn("pass signal rejected", "entity_id", q.ID(), "error", err)
		}
	}
	if fb, err := s.Feedback(e.langs...); err == nil {
		res.Feedback = fb
	}
}

func (e *Engine) signal(res *Result, id string, sig completion.Signal) error {
	tr, err := e.tracker.Signal(id, sig)
	if err != nil {
		return err
	}
	res.Transitions = append(res.Transitions, tr...)
	return nil
}

// nextQuestion reports the question to answer next. Looking it up may expire
// the part, so outcomes are settled afterwards.
func (e *Engine) nextQuestion(res *Result, q *questionnaire.Questionnaire, s *questionnaire.Session) {
	if next, ok := s.Next(); ok {
		res.Next = questionView(next, e.langs)
	}
	e.settleQuestionnaire(res, q, s)
}

// Tick evaluates the time limit of every attempt in progress at now. It is
// equivalent to a timeout event for each of them.
func (e *Engine) Tick(ctx context.Context, now time.Time) Result {
	res := newResult()
	for _, id := range e.tracker.BlockIDs(content.KindQuestionnaire) {
		q := e.quizzes[id]
		if q == nil {
			continue
		}
		s, ok := q.Current()
		if !ok || !s.Tick(now) {
			continue
		}
		slog.Info("questionnaire part timed out",
			"unit_id", e.unit.ID,
			"entity_id", id,
			"learner_id", e.learner,
		)
		e.settleQuestionnaire(&res, q, s)
		res.Status = statusOf(q)
		res.Accepted = true
	}
	if res.Accepted {
		res.Returns = e.nav.Observe(res.Transitions)
		e.publish(ctx, res)
	}
	return res
}

// publish delivers transitions and outcomes to the sink. Sink failures are
// logged; the engine state already changed and is not rolled back.
func (e *Engine) publish(ctx context.Context, res Result) {
	base := notify.Notification{
		UnitID:      e.unit.ID,
		Fingerprint: e.unit.Fingerprint,
		LearnerID:   e.learner,
	}
	for i := range res.Transitions {
		n := base
		n.Kind = notify.KindTransition
		n.Transition = &res.Transitions[i]
		e.deliver(ctx, n)
	}
	for i := range res.Outcomes {
		n := base
		n.Kind = notify.KindOutcome
		n.Outcome = &res.Outcomes[i]
		n.QuestionnaireID = res.Outcomes[i].QuestionnaireID
		e.deliver(ctx, n)
	}
	for _, tr := range res.Transitions {
		if tr.EntityID == completion.UnitID && tr.Next == completion.Done {
			slog.Info("unit completed", "unit_id", e.unit.ID, "learner_id", e.learner)
		}
	}
}

func (e *Engine) deliver(ctx context.Context, n notify.Notification) {
	if err := e.sink.Notify(ctx, n); err != nil {
		slog.Warn("notification not delivered",
			"unit_id", n.UnitID,
			"entity_id", n.EntityID(),
			"error", err,
		)
	}
}

// Snapshot returns the completion state of every entity.
func (e *Engine) Snapshot() []completion.Status {
	return e.tracker.Snapshot()
}
