package engine

import (
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

// ChoiceView is one interaction component as shown to the learner.
type ChoiceView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// QuestionView is the next question without its response patterns.
type QuestionView struct {
	PartID           string                  `json:"partId"`
	Position         int                     `json:"position"`
	Total            int                     `json:"total"`
	QuestionID       string                  `json:"questionId,omitempty"`
	Name             string                  `json:"name,omitempty"`
	Description      string                  `json:"description"`
	InteractionType  content.InteractionType `json:"interactionType"`
	MultipleChoice   bool                    `json:"multipleChoice,omitempty"`
	Choices          []ChoiceView            `json:"choices,omitempty"`
	Scale            []ChoiceView            `json:"scale,omitempty"`
	Source           []ChoiceView            `json:"source,omitempty"`
	Target           []ChoiceView            `json:"target,omitempty"`
	Steps            []ChoiceView            `json:"steps,omitempty"`
	RemainingSeconds *float64                `json:"remainingSeconds,omitempty"`
}

func questionView(q questionnaire.Question, prefs []language.Tag) *QuestionView {
	d := q.Question.Definition
	v := &QuestionView{
		PartID:          q.PartID,
		Position:        q.Position,
		Total:           q.Total,
		QuestionID:      q.Question.ID,
		InteractionType: d.InteractionType,
		MultipleChoice:  d.MultipleChoice,
		Choices:         choiceViews(d.Choices, prefs),
		Scale:           choiceViews(d.Scale, prefs),
		Source:          choiceViews(d.Source, prefs),
		Target:          choiceViews(d.Target, prefs),
		Steps:           choiceViews(d.Steps, prefs),
	}
	v.Name, _ = d.Name.Resolve(prefs...)
	v.Description, _ = d.Description.Resolve(prefs...)
	if q.Remaining > 0 {
		secs := q.Remaining.Seconds()
		v.RemainingSeconds = &secs
	}
	return v
}

func choiceViews(list []content.InteractionComponent, prefs []language.Tag) []ChoiceView {
	if len(list) == 0 {
		return nil
	}
	out := make([]ChoiceView, len(list))
	for i, c := range list {
		out[i].ID = c.ID
		out[i].Description, _ = c.Description.Resolve(prefs...)
	}
	return out
}

// QuestionnaireStatus summarizes a questionnaire block for the learner.
type QuestionnaireStatus struct {
	ID                string              `json:"id"`
	AttemptsUsed      int                 `json:"attemptsUsed"`
	AttemptsRemaining *int                `json:"attemptsRemaining,omitempty"`
	Passed            bool                `json:"passed"`
	Exhausted         bool                `json:"exhausted"`
	SessionID         string              `json:"sessionId,omitempty"`
	State             questionnaire.State `json:"state,omitempty"`
	PartID            string              `json:"partId,omitempty"`
	Score             float64             `json:"score"`
}

func statusOf(q *questionnaire.Questionnaire) *QuestionnaireStatus {
	st := &QuestionnaireStatus{
		ID:           q.ID(),
		AttemptsUsed: q.AttemptsUsed(),
		Passed:       q.Passed(),
		Exhausted:    q.Exhausted(),
	}
	if n, limited := q.AttemptsRemaining(); limited {
		st.AttemptsRemaining = &n
	}
	s, ok := q.Current()
	if !ok {
		s, ok = q.Last()
	}
	if ok {
		st.SessionID = s.ID
		st.State = s.State()
		st.PartID = s.PartID()
		st.Score = s.Score()
	}
	return st
}
