package questionnaire

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/scoring"
)

// ImmediateFeedback is shown right after an answer when the question asks
// for it.
type ImmediateFeedback struct {
	Text             content.LanguageMap `json:"text,omitempty"`
	ResultText       content.LanguageMap `json:"resultText,omitempty"`
	Correct          *bool               `json:"correct,omitempty"`
	ShowIcon         bool                `json:"showIcon,omitempty"`
	CorrectResponses []string            `json:"correctResponses,omitempty"`
}

func immediateFeedback(rec *Record) *ImmediateFeedback {
	fb := rec.Question.Definition.Feedback
	if fb == nil || !fb.Immediate {
		return nil
	}
	return questionFeedback(rec)
}

// questionFeedback builds question feedback. Correctness parts apply only
// when the question has a correct response pattern.
func questionFeedback(rec *Record) *ImmediateFeedback {
	d := rec.Question.Definition
	out := &ImmediateFeedback{}
	if d.Feedback == nil {
		return out
	}
	out.Text = d.Feedback.Text
	if rec.Correct == nil {
		return out
	}
	out.Correct = rec.Correct
	out.ShowIcon = d.Feedback.SuccessIcon
	if *rec.Correct {
		out.ResultText = d.Feedback.CorrectText
	} else {
		out.ResultText = d.Feedback.IncorrectText
	}
	if d.Feedback.ShowCorrectResponse {
		out.CorrectResponses = d.CorrectResponsesPattern
	}
	return out
}

// PartFeedback is the feedback for one finished part.
type PartFeedback struct {
	PartID    string   `json:"partId"`
	Text      string   `json:"text,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Passed    *bool    `json:"passed,omitempty"`
	ScoreText string   `json:"scoreText,omitempty"`
}

// Feedback is shown once an attempt reached its terminal outcome.
type Feedback struct {
	Text              string         `json:"text,omitempty"`
	Score             float64        `json:"score"`
	Passed            bool           `json:"passed"`
	AttemptsRemaining *int           `json:"attemptsRemaining,omitempty"`
	ReviewAvailable   bool           `json:"reviewAvailable"`
	RetryAvailable    bool           `json:"retryAvailable"`
	Parts             []PartFeedback `json:"parts,omitempty"`
}

// Feedback resolves the questionnaire feedback of a finished attempt in the
// preferred languages.
func (s *Session) Feedback(prefs ...language.Tag) (*Feedback, error) {
	if !s.finished {
		return nil, fmt.Errorf("%w: attempt %d is not finished", ErrInvalidTransition, s.Attempt)
	}
	q := s.q
	out := &Feedback{
		Score:           s.total,
		Passed:          s.passed,
		ReviewAvailable: q.block.Review,
	}
	if q.block.QuestionnaireText != nil {
		out.Text, _ = q.block.QuestionnaireText.Text.Resolve(prefs...)
	}
	if n, limited := q.AttemptsRemaining(); limited {
		out.AttemptsRemaining = &n
		out.RetryAvailable = n > 0
	}

	for _, r := range s.runs {
		if r.state != Finished || r.node.Part.Feedback == nil {
			continue
		}
		p := r.node.Part
		fb := p.Feedback
		pf := PartFeedback{PartID: r.node.ID}
		pf.Text, _ = fb.Text.Resolve(prefs...)
		if p.Scored() {
			if fb.ShowScore {
				score := r.outcome.Score
				pf.Score = &score
			}
			if res := scoring.Resolve(fb.ScoreText, r.outcome.Score, p.Inverse()); res.Present() {
				pf.ScoreText, _ = res.Value.Resolve(prefs...)
			}
		}
		if fb.ShowIcon {
			pf.Passed = r.outcome.Passed
		}
		out.Parts = append(out.Parts, pf)
	}
	return out, nil
}

// ReviewItem is one reviewed question with the learner's response.
type ReviewItem struct {
	PartID      string             `json:"partId"`
	Position    int                `json:"position"`
	QuestionID  string             `json:"questionId,omitempty"`
	Description string             `json:"description"`
	Response    string             `json:"response,omitempty"`
	Skipped     bool               `json:"skipped,omitempty"`
	Score       float64            `json:"score"`
	Feedback    *ImmediateFeedback `json:"feedback,omitempty"`
}

// Review returns every recorded response of a finished attempt. It is only
// available when the questionnaire allows review; responses cannot change.
func (s *Session) Review(prefs ...language.Tag) ([]ReviewItem, error) {
	if !s.finished {
		return nil, fmt.Errorf("%w: attempt %d is not finished", ErrInvalidTransition, s.Attempt)
	}
	if !s.q.block.Review {
		return nil, fmt.Errorf("%w: %s does not allow review", ErrInvalidTransition, s.q.id)
	}

	var items []ReviewItem
	for _, r := range s.runs {
		for _, rec := range r.records {
			d := rec.Question.Definition
			item := ReviewItem{
				PartID:     r.node.ID,
				Position:   rec.Position,
				QuestionID: rec.Question.ID,
				Response:   rec.Response,
				Skipped:    rec.Skipped,
				Score:      rec.Score,
			}
			item.Description, _ = d.Description.Resolve(prefs...)
			if !rec.Skipped {
				item.Feedback = questionFeedback(rec)
			}
			items = append(items, item)
		}
	}
	return items, nil
}
