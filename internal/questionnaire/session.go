package questionnaire

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/scoring"
)

// State is the state of a part run or of the whole attempt.
type State string

const (
	NotStarted   State = "not-started"
	Introduction State = "introduction"
	InProgress   State = "in-progress"
	Finished     State = "finished"
)

// Outcome is the result of a finished part.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomePassed   Outcome = "passed"
	OutcomeFailed   Outcome = "failed"
	OutcomeScored   Outcome = "scored"
	OutcomeUnscored Outcome = "unscored"
)

// FinishReason tells why a part stopped accepting answers.
type FinishReason string

const (
	ReasonAnswered  FinishReason = "answered"
	ReasonExit      FinishReason = "exit-response"
	ReasonTimeLimit FinishReason = "time-limit"
)

// Record is the recorded response to one selected question.
type Record struct {
	Position   int
	Question   *content.Question
	Response   string
	Score      float64
	Correct    *bool
	Skipped    bool
	AnsweredAt time.Time
}

// PartOutcome is reported once per finished part.
type PartOutcome struct {
	// QuestionnaireID is the block id of the questionnaire owning the part.
	QuestionnaireID string       `json:"questionnaireId"`
	PartID          string       `json:"partId"`
	Score           float64      `json:"score"`
	PartScore       float64      `json:"partScore"`
	Outcome         Outcome      `json:"outcome"`
	Passed          *bool        `json:"passed,omitempty"`
	NextPartID      string       `json:"nextPartId,omitempty"`
	Reason          FinishReason `json:"reason"`
}

type partRun struct {
	node      *content.Node
	state     State
	records   []*Record
	next      int
	score     float64
	startedAt time.Time
	deadline  time.Time
	reason    FinishReason
	outcome   PartOutcome
}

// Session is one attempt of a questionnaire.
type Session struct {
	ID      string
	Attempt int

	q         *Questionnaire
	runs      []*partRun
	total     float64
	finished  bool
	passed    bool
	abandoned bool
	// pending collects part outcomes until drained by the caller.
	pending []PartOutcome
}

func newSession(q *Questionnaire, attempt int) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Attempt: attempt,
		q:       q,
	}
}

func (s *Session) current() *partRun {
	return s.runs[len(s.runs)-1]
}

// enter places a part in its introduction, or begins it at the given time
// when the part has no introduction.
func (s *Session) enter(n *content.Node, at time.Time) {
	run := &partRun{node: n, state: Introduction}
	s.runs = append(s.runs, run)
	if n.Part.Introduction == nil {
		s.begin(run, at)
	}
}

// State returns the state of the attempt: the current part's state, or
// Finished once the terminal part is done.
func (s *Session) State() State {
	if s.finished {
		return Finished
	}
	return s.current().state
}

// PartID returns the id of the current part.
func (s *Session) PartID() string { return s.current().node.ID }

// Part returns the current part definition.
func (s *Session) Part() *content.Part { return s.current().node.Part }

// Score returns the cumulative score of the attempt.
func (s *Session) Score() float64 { return s.total }

// Terminal reports whether the attempt reached its terminal outcome.
func (s *Session) Terminal() bool { return s.finished }

// Passed reports whether the attempt passed: every visited part with pass
// criteria passed and at least one such part was visited.
func (s *Session) Passed() bool { return s.passed }

// Abandoned reports whether the attempt was abandoned.
func (s *Session) Abandoned() bool { return s.abandoned }

// InFirstPart reports whether the learner is still in the first part.
func (s *Session) InFirstPart() bool { return len(s.runs) == 1 }

// DrainOutcomes returns part outcomes produced since the last call.
func (s *Session) DrainOutcomes() []PartOutcome {
	out := s.pending
	s.pending = nil
	return out
}

// Outcomes returns the outcome of every finished part, in order.
func (s *Session) Outcomes() []PartOutcome {
	var out []PartOutcome
	for _, r := range s.runs {
		if r.state == Finished {
			out = append(out, r.outcome)
		}
	}
	return out
}

// Begin leaves the introduction of the current part: the question subset is
// drawn and the time limit starts.
func (s *Session) Begin() error {
	if err := s.live(); err != nil {
		return err
	}
	run := s.current()
	if run.state != Introduction {
		return fmt.Errorf("%w: part %s is %s", ErrInvalidTransition, run.node.ID, run.state)
	}
	s.begin(run, s.q.opts.Now())
	return nil
}

func (s *Session) begin(run *partRun, at time.Time) {
	p := run.node.Part
	order := make([]int, len(p.Questions))
	for i := range order {
		order[i] = i
	}
	if p.NumberOfQuestions != nil {
		order = s.q.opts.Rand.Perm(len(p.Questions))[:*p.NumberOfQuestions]
	}

	run.records = make([]*Record, len(order))
	for pos, qi := range order {
		run.records[pos] = &Record{Position: pos, Question: &p.Questions[qi]}
	}
	run.startedAt = at
	if p.TimeLimit != nil {
		run.deadline = run.startedAt.Add(time.Duration(*p.TimeLimit) * time.Second)
	}
	run.state = InProgress
}

func (s *Session) live() error {
	switch {
	case s.abandoned:
		return fmt.Errorf("%w: attempt %d was abandoned", ErrInvalidTransition, s.Attempt)
	case s.finished:
		return fmt.Errorf("%w: attempt %d is finished", ErrInvalidTransition, s.Attempt)
	}
	return nil
}

// Question is the question the learner must answer next.
type Question struct {
	PartID   string
	Position int
	Total    int
	Question *content.Question
	// Remaining is the time left, zero when the part has no time limit.
	Remaining time.Duration
}

// Next returns the next question to answer, if the current part accepts one.
func (s *Session) Next() (Question, bool) {
	if s.abandoned {
		return Question{}, false
	}
	now := s.q.opts.Now()
	s.expire(now)
	if s.finished {
		return Question{}, false
	}
	run := s.current()
	if run.state != InProgress {
		return Question{}, false
	}
	q := Question{
		PartID:   run.node.ID,
		Position: run.next,
		Total:    len(run.records),
		Question: run.records[run.next].Question,
	}
	if !run.deadline.IsZero() {
		q.Remaining = run.deadline.Sub(now)
	}
	return q, true
}

// Tick evaluates the time limit of the current part at now. It reports
// whether the part expired during this call. Repeated ticks are no-ops.
func (s *Session) Tick(now time.Time) bool {
	if s.abandoned {
		return false
	}
	return s.expire(now)
}

// expire finishes every part whose deadline passed by now. A part reached
// through an expired part starts at that part's deadline, so the outcome
// does not depend on when expiry is observed.
func (s *Session) expire(now time.Time) bool {
	expired := false
	for !s.finished {
		run := s.current()
		if run.state != InProgress || run.deadline.IsZero() || now.Before(run.deadline) {
			break
		}
		s.finish(run, ReasonTimeLimit, run.deadline)
		expired = true
	}
	return expired
}

// timedOut reports whether the latest finished part ended on its time limit
// and no part is accepting answers since.
func (s *Session) timedOut() bool {
	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i]
		if r.state == InProgress {
			return false
		}
		if r.state == Finished {
			return r.reason == ReasonTimeLimit
		}
	}
	return false
}

// AnswerResult describes the effect of one answer.
type AnswerResult struct {
	PartID     string             `json:"partId"`
	Position   int                `json:"position"`
	Score      float64            `json:"score"`
	Correct    *bool              `json:"correct,omitempty"`
	Exit       bool               `json:"exit,omitempty"`
	Feedback   *ImmediateFeedback `json:"feedback,omitempty"`
	PartDone   bool               `json:"partDone"`
	Terminal   bool               `json:"terminal"`
	FirstPart  bool               `json:"firstPart"`
	Cumulative float64            `json:"cumulative"`
}

// Answer records the response to the question at position in the current
// part. Questions must be answered in the order fixed when the part began.
func (s *Session) Answer(position int, response string) (*AnswerResult, error) {
	if s.abandoned {
		return nil, s.live()
	}
	now := s.q.opts.Now()
	if s.expire(now) || s.timedOut() {
		return nil, fmt.Errorf("%w: part %s", ErrTimeLimitExceeded, s.lastFinished().node.ID)
	}
	if err := s.live(); err != nil {
		return nil, err
	}

	run := s.current()
	if run.state != InProgress {
		return nil, fmt.Errorf("%w: part %s is %s", ErrInvalidTransition, run.node.ID, run.state)
	}
	switch {
	case position < 0 || position >= len(run.records):
		return nil, fmt.Errorf("%w: part %s has no question %d", ErrInvalidTransition, run.node.ID, position)
	case position < run.next:
		return nil, fmt.Errorf("%w (%w): question %d of part %s", ErrDuplicateAnswer, ErrInvalidTransition, position, run.node.ID)
	case position > run.next:
		return nil, fmt.Errorf("%w: question %d answered before question %d", ErrInvalidTransition, position, run.next)
	}

	rec := run.records[position]
	d := rec.Question.Definition
	rec.Response = response
	rec.AnsweredAt = now
	rec.Score = ScoreResponse(d, response)
	if len(d.CorrectResponsesPattern) > 0 {
		correct := MatchesAny(d.InteractionType, response, d.CorrectResponsesPattern)
		rec.Correct = &correct
	}
	run.score += rec.Score
	s.total += rec.Score
	run.next++

	res := &AnswerResult{
		PartID:    run.node.ID,
		Position:  position,
		Score:     rec.Score,
		Correct:   rec.Correct,
		FirstPart: s.InFirstPart(),
		Feedback:  immediateFeedback(rec),
	}

	switch {
	case len(d.ExitResponsesPattern) > 0 && MatchesAny(d.InteractionType, response, d.ExitResponsesPattern):
		res.Exit = true
		s.finish(run, ReasonExit, now)
	case run.next == len(run.records):
		s.finish(run, ReasonAnswered, now)
	}

	res.PartDone = run.state == Finished
	res.Terminal = s.finished
	res.Cumulative = s.total
	return res, nil
}

func (s *Session) lastFinished() *partRun {
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].state == Finished {
			return s.runs[i]
		}
	}
	return s.current()
}

// finish closes a part at the given time, evaluates it and moves to the next
// part or ends the attempt. A next part without introduction starts at the
// same time.
func (s *Session) finish(run *partRun, reason FinishReason, at time.Time) {
	for _, rec := range run.records[run.next:] {
		rec.Skipped = true
	}
	run.state = Finished
	run.reason = reason

	p := run.node.Part
	score := run.score
	if s.q.opts.ScoreMode == ScoreCumulative {
		score = s.total
	}

	out := PartOutcome{
		QuestionnaireID: s.q.id,
		PartID:          run.node.ID,
		Score:           score,
		PartScore:       run.score,
		Reason:          reason,
	}
	switch {
	case p.Scored() && p.PassCriteria != nil:
		passed := scoring.Passed(score, scoring.Criteria{Score: p.PassCriteria.Score, Inverse: p.PassCriteria.Inverse})
		out.Passed = &passed
		out.Outcome = OutcomeFailed
		if passed {
			out.Outcome = OutcomePassed
		}
	case p.Scored():
		out.Outcome = OutcomeScored
	default:
		out.Outcome = OutcomeUnscored
	}

	var next *content.Node
	if len(run.node.Branches) > 0 {
		res := scoring.Resolve(run.node.Branches, score, p.Inverse())
		if res.Present() {
			next = res.Value
			out.NextPartID = next.ID
		}
	}

	run.outcome = out
	s.pending = append(s.pending, out)

	if next != nil {
		s.enter(next, at)
		return
	}
	s.conclude()
}

func (s *Session) conclude() {
	s.finished = true
	gated := false
	passed := true
	for _, r := range s.runs {
		if r.node.Part.PassCriteria == nil || !r.node.Part.Scored() {
			continue
		}
		gated = true
		if r.outcome.Passed == nil || !*r.outcome.Passed {
			passed = false
		}
	}
	s.passed = gated && passed
	s.q.commit(s)
}
