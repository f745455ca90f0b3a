// Package questionnaire runs questionnaire attempts: question selection,
// answer recording, scoring, time limits, part branching, feedback and review.
package questionnaire

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/content"
)

var (
	// ErrInvalidTransition is shared with the completion tracker.
	ErrInvalidTransition = completion.ErrInvalidTransition
	// ErrDuplicateAnswer is returned when a question already has a response.
	ErrDuplicateAnswer = errors.New("duplicate answer")
	// ErrTimeLimitExceeded is returned for answers after the part's time limit.
	ErrTimeLimitExceeded = errors.New("time limit exceeded")
	// ErrAttemptsExhausted is returned when no attempt is left.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
)

// ScoreMode decides which score a part's pass criteria and branches see.
type ScoreMode string

const (
	// ScoreCumulative carries the score of earlier parts into later parts.
	ScoreCumulative ScoreMode = "cumulative"
	// ScorePerPart evaluates every part on its own score.
	ScorePerPart ScoreMode = "per-part"
)

// Options configures questionnaire runtimes.
type Options struct {
	ScoreMode ScoreMode
	// CountAbandoned makes abandoned attempts count toward the attempt limit.
	CountAbandoned bool
	// Rand drives question sampling. Defaults to a randomly seeded source.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ScoreMode == "" {
		o.ScoreMode = ScoreCumulative
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Questionnaire is the runtime of one questionnaire block. It owns the attempt
// counter shared by successive sessions.
type Questionnaire struct {
	id    string
	block *content.Block
	arena *content.Arena
	opts  Options

	attemptsUsed int
	passed       bool
	current      *Session
	last         *Session
}

// New builds the runtime of a questionnaire block. id is the block's entity id.
func New(id string, b *content.Block, opts Options) (*Questionnaire, error) {
	if b == nil || b.Type != content.KindQuestionnaire {
		return nil, fmt.Errorf("%s: not a questionnaire block", id)
	}
	arena, err := content.BuildArena(b.First)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return &Questionnaire{
		id:    id,
		block: b,
		arena: arena,
		opts:  opts.withDefaults(),
	}, nil
}

// ID returns the block entity id.
func (q *Questionnaire) ID() string { return q.id }

// Block returns the questionnaire definition.
func (q *Questionnaire) Block() *content.Block { return q.block }

// AttemptsUsed returns the number of committed attempts.
func (q *Questionnaire) AttemptsUsed() int { return q.attemptsUsed }

// AttemptsRemaining returns the attempts left, or false when unlimited.
func (q *Questionnaire) AttemptsRemaining() (int, bool) {
	if q.block.Attempts == nil {
		return 0, false
	}
	return max(*q.block.Attempts-q.attemptsUsed, 0), true
}

// Passed reports whether any attempt passed.
func (q *Questionnaire) Passed() bool { return q.passed }

// Exhausted reports whether every permitted attempt was used without a pass.
// An exhausted questionnaire can never be passed.
func (q *Questionnaire) Exhausted() bool {
	n, limited := q.AttemptsRemaining()
	return limited && n == 0 && !q.passed
}

// Current returns the attempt in progress, if any.
func (q *Questionnaire) Current() (*Session, bool) {
	return q.current, q.current != nil
}

// Last returns the most recent finished attempt, if any.
func (q *Questionnaire) Last() (*Session, bool) {
	return q.last, q.last != nil
}

// StartAttempt starts a new attempt. It fails while another attempt is in
// progress or when the attempt limit is reached.
func (q *Questionnaire) StartAttempt() (*Session, error) {
	if q.current != nil {
		return nil, fmt.Errorf("%w: %s has an attempt in progress", ErrInvalidTransition, q.id)
	}
	if n, limited := q.AttemptsRemaining(); limited && n == 0 {
		return nil, fmt.Errorf("%w: %s used %d of %d attempts", ErrAttemptsExhausted, q.id, q.attemptsUsed, *q.block.Attempts)
	}

	s := newSession(q, q.attemptsUsed+1)
	q.current = s
	s.enter(q.arena.Root, q.opts.Now())

	slog.Debug("questionnaire attempt started",
		"questionnaire_id", q.id,
		"attempt", s.Attempt,
	)
	return s, nil
}

// Abandon ends the attempt in progress without finishing it.
func (q *Questionnaire) Abandon() error {
	s := q.current
	if s == nil {
		return fmt.Errorf("%w: %s has no attempt in progress", ErrInvalidTransition, q.id)
	}
	s.abandoned = true
	q.current = nil
	if q.opts.CountAbandoned {
		q.attemptsUsed++
	}
	slog.Info("questionnaire attempt abandoned",
		"questionnaire_id", q.id,
		"attempt", s.Attempt,
		"counted", q.opts.CountAbandoned,
	)
	return nil
}

// commit is called by a session once its terminal part finished.
func (q *Questionnaire) commit(s *Session) {
	q.attemptsUsed++
	q.current = nil
	q.last = s
	if s.passed {
		q.passed = true
	}
	slog.Info("questionnaire attempt finished",
		"questionnaire_id", q.id,
		"attempt", s.Attempt,
		"score", s.total,
		"passed", s.passed,
		"exhausted", q.Exhausted(),
	)
}
