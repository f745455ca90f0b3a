package content

// Unit is the root definition of a learning experience.
type Unit struct {
	ID           string          `yaml:"id" json:"id"`
	Version      string          `yaml:"version" json:"version"`
	Activity     *Activity       `yaml:"activity" json:"activity,omitempty"`
	Name         LanguageMap     `yaml:"name" json:"name"`
	Description  LanguageMap     `yaml:"description" json:"description,omitempty"`
	Image        *Image          `yaml:"image" json:"image,omitempty"`
	PrimaryColor string          `yaml:"primaryColor" json:"primaryColor,omitempty"`
	AccentColor  string          `yaml:"accentColor" json:"accentColor,omitempty"`
	WarnColor    string          `yaml:"warnColor" json:"warnColor,omitempty"`
	Containers   []PathContainer `yaml:"containers" json:"containers"`
	Help         *Path           `yaml:"help" json:"help,omitempty"`
	Paths        []Path          `yaml:"paths" json:"paths,omitempty"`

	// Fingerprint is the blake2b digest of the source document, set by the loader.
	Fingerprint string `yaml:"-" json:"-"`
}

// Image is an image reference with optional attribution.
type Image struct {
	URL         string      `yaml:"url" json:"url"`
	Description LanguageMap `yaml:"description" json:"description,omitempty"`
}

// Activity is the xAPI activity a block, container or part reports against.
type Activity struct {
	ID         string              `yaml:"id" json:"id"`
	Definition *ActivityDefinition `yaml:"definition" json:"definition,omitempty"`
}

// ActivityDefinition holds the optional xAPI activity definition.
type ActivityDefinition struct {
	Name        LanguageMap `yaml:"name" json:"name,omitempty"`
	Description LanguageMap `yaml:"description" json:"description,omitempty"`
	Type        string      `yaml:"type" json:"type,omitempty"`
}

// Container is an ordered group of blocks.
type Container struct {
	Name     LanguageMap `yaml:"name" json:"name,omitempty"`
	Activity *Activity   `yaml:"activity" json:"activity,omitempty"`
	Blocks   []Block     `yaml:"blocks" json:"blocks"`
}

// PathContainer is a container with a stable identity inside a unit or path.
type PathContainer struct {
	Container `yaml:",inline"`

	ID       string `yaml:"id" json:"id"`
	Complete bool   `yaml:"complete" json:"complete,omitempty"`
	// Completed is accepted as an alias of Complete.
	Completed bool `yaml:"completed" json:"completed,omitempty"`
}

// CompletesUnit reports whether the unit is done once this container is done.
func (c PathContainer) CompletesUnit() bool {
	return c.Complete || c.Completed
}

// Path is a named sequence of containers navigable outside the main flow.
type Path struct {
	ID         string          `yaml:"id" json:"id"`
	Name       LanguageMap     `yaml:"name" json:"name,omitempty"`
	Activity   *Activity       `yaml:"activity" json:"activity,omitempty"`
	Containers []PathContainer `yaml:"containers" json:"containers"`
}

// BlockKind is the type tag of a block.
type BlockKind string

const (
	KindVideo         BlockKind = "video"
	KindYouTube       BlockKind = "youtube"
	KindHTML          BlockKind = "html"
	KindFlashcard     BlockKind = "flashcard"
	KindLabeledImage  BlockKind = "labeled-image"
	KindButtonGroup   BlockKind = "button-group"
	KindTabs          BlockKind = "tabs"
	KindProcess       BlockKind = "process"
	KindQuestionnaire BlockKind = "questionnaire"
)

// DoneCriteria is the condition under which a block becomes done.
type DoneCriteria string

const (
	CriteriaNone        DoneCriteria = ""
	CriteriaExperienced DoneCriteria = "experienced"
	CriteriaCompleted   DoneCriteria = "completed"
	CriteriaInteracted  DoneCriteria = "interacted"
	CriteriaPassed      DoneCriteria = "passed"
)

// Block is a unit of content. Only the fields of its Type are meaningful.
type Block struct {
	Type         BlockKind    `yaml:"type" json:"type"`
	Activity     *Activity    `yaml:"activity" json:"activity,omitempty"`
	DoneCriteria DoneCriteria `yaml:"doneCriteria" json:"doneCriteria,omitempty"`

	// html, video
	URL string `yaml:"url" json:"url,omitempty"`
	// youtube
	VideoID string `yaml:"videoId" json:"videoId,omitempty"`

	// flashcard
	Cards []Card `yaml:"cards" json:"cards,omitempty"`

	// labeled-image
	Image               string  `yaml:"image" json:"image,omitempty"`
	Labels              []Label `yaml:"labels" json:"labels,omitempty"`
	MinimumLabelsOpened *int    `yaml:"minimumLabelsOpened" json:"minimumLabelsOpened,omitempty"`

	// button-group
	Buttons            []Button `yaml:"buttons" json:"buttons,omitempty"`
	MinimumButtonsDone *int     `yaml:"minimumButtonsDone" json:"minimumButtonsDone,omitempty"`
	Single             bool     `yaml:"single" json:"single,omitempty"`

	// tabs
	Tabs            []Container `yaml:"tabs" json:"tabs,omitempty"`
	MinimumTabsDone *int        `yaml:"minimumTabsDone" json:"minimumTabsDone,omitempty"`

	// process
	Steps []Container `yaml:"steps" json:"steps,omitempty"`

	// questionnaire
	Review            bool                   `yaml:"review" json:"review,omitempty"`
	Attempts          *int                   `yaml:"attempts" json:"attempts,omitempty"`
	First             *Part                  `yaml:"first" json:"first,omitempty"`
	QuestionnaireText *QuestionnaireFeedback `yaml:"feedback" json:"feedback,omitempty"`
}

// Card is a two-sided flashcard.
type Card struct {
	Front CardSide `yaml:"front" json:"front"`
	Back  CardSide `yaml:"back" json:"back"`
}

// CardSide is the content of one side of a card.
type CardSide struct {
	Text        LanguageMap `yaml:"text" json:"text,omitempty"`
	Description LanguageMap `yaml:"description" json:"description,omitempty"`
	Image       *Image      `yaml:"image" json:"image,omitempty"`
	Audio       string      `yaml:"audio" json:"audio,omitempty"`
}

// Label is a positioned marker on a labeled image.
type Label struct {
	Name        LanguageMap `yaml:"name" json:"name"`
	Description LanguageMap `yaml:"description" json:"description"`
	X           float64     `yaml:"x" json:"x"`
	Y           float64     `yaml:"y" json:"y"`
}

// Button is one button of a button-group block.
type Button struct {
	Action      string      `yaml:"action" json:"action"`
	Text        LanguageMap `yaml:"text" json:"text"`
	Title       LanguageMap `yaml:"title" json:"title,omitempty"`
	Description LanguageMap `yaml:"description" json:"description,omitempty"`
	Image       *Image      `yaml:"image" json:"image,omitempty"`
}

// QuestionnaireFeedback is shown after the learner finishes a questionnaire.
type QuestionnaireFeedback struct {
	Text LanguageMap `yaml:"text" json:"text"`
}

// PassCriteria decides whether a scored part is passed.
type PassCriteria struct {
	Score   int  `yaml:"score" json:"score"`
	Inverse bool `yaml:"inverse" json:"inverse,omitempty"`
}

// Introduction is displayed before the learner starts a part.
type Introduction struct {
	Text                  LanguageMap `yaml:"text" json:"text,omitempty"`
	ShowPassCriteria      bool        `yaml:"showPassCriteria" json:"showPassCriteria,omitempty"`
	ShowNumberOfQuestions bool        `yaml:"showNumberOfQuestions" json:"showNumberOfQuestions,omitempty"`
	ShowTimeLimit         bool        `yaml:"showTimeLimit" json:"showTimeLimit,omitempty"`
}

// PartFeedback is the per-part section of the questionnaire feedback.
type PartFeedback struct {
	Text      LanguageMap          `yaml:"text" json:"text,omitempty"`
	ShowScore bool                 `yaml:"showScore" json:"showScore,omitempty"`
	ShowIcon  bool                 `yaml:"showIcon" json:"showIcon,omitempty"`
	ScoreText map[int]*LanguageMap `yaml:"scoreText" json:"scoreText,omitempty"`
}

// Part is one scoring and branching node of a questionnaire.
//
// A part either declares its content or refers to a part declared elsewhere in
// the same questionnaire through Ref. Next values may be nil, which selects no
// next part.
type Part struct {
	ID                string        `yaml:"id" json:"id,omitempty"`
	Ref               string        `yaml:"ref" json:"ref,omitempty"`
	Activity          *Activity     `yaml:"activity" json:"activity,omitempty"`
	PassCriteria      *PassCriteria `yaml:"passCriteria" json:"passCriteria,omitempty"`
	NumberOfQuestions *int          `yaml:"numberOfQuestions" json:"numberOfQuestions,omitempty"`
	TimeLimit         *int          `yaml:"timeLimit" json:"timeLimit,omitempty"` // seconds
	Introduction      *Introduction `yaml:"introduction" json:"introduction,omitempty"`
	Feedback          *PartFeedback `yaml:"feedback" json:"feedback,omitempty"`
	Questions         []Question    `yaml:"questions" json:"questions,omitempty"`
	Next              map[int]*Part `yaml:"next" json:"next,omitempty"`
}

// Scored reports whether any question or interaction component carries a score.
func (p *Part) Scored() bool {
	for _, q := range p.Questions {
		if q.Definition.Score != nil {
			return true
		}
		for _, c := range q.Definition.Components() {
			if c.Score != nil {
				return true
			}
		}
	}
	return false
}

// Inverse reports whether the part's score tables are resolved inversely.
func (p *Part) Inverse() bool {
	return p.PassCriteria != nil && p.PassCriteria.Inverse
}

// InteractionType is the xAPI interaction type of a question.
type InteractionType string

const (
	InteractionTrueFalse   InteractionType = "true-false"
	InteractionChoice      InteractionType = "choice"
	InteractionFillIn      InteractionType = "fill-in"
	InteractionLongFillIn  InteractionType = "long-fill-in"
	InteractionMatching    InteractionType = "matching"
	InteractionPerformance InteractionType = "performance"
	InteractionSequencing  InteractionType = "sequencing"
	InteractionLikert      InteractionType = "likert"
	InteractionNumeric     InteractionType = "numeric"
	InteractionOther       InteractionType = "other"
)

// Question is a single interaction within a part.
type Question struct {
	ID         string             `yaml:"id" json:"id,omitempty"`
	Definition QuestionDefinition `yaml:"definition" json:"definition"`
}

// QuestionDefinition holds the question text, scoring and feedback.
type QuestionDefinition struct {
	Name                    LanguageMap            `yaml:"name" json:"name,omitempty"`
	Description             LanguageMap            `yaml:"description" json:"description"`
	Feedback                *QuestionFeedback      `yaml:"feedback" json:"feedback,omitempty"`
	InteractionType         InteractionType        `yaml:"interactionType" json:"interactionType"`
	MultipleChoice          bool                   `yaml:"multipleChoice" json:"multipleChoice,omitempty"`
	Score                   *float64               `yaml:"score" json:"score,omitempty"`
	CorrectResponsesPattern []string               `yaml:"correctResponsesPattern" json:"correctResponsesPattern,omitempty"`
	ExitResponsesPattern    []string               `yaml:"exitResponsesPattern" json:"exitResponsesPattern,omitempty"`
	Choices                 []InteractionComponent `yaml:"choices" json:"choices,omitempty"`
	Scale                   []InteractionComponent `yaml:"scale" json:"scale,omitempty"`
	Source                  []InteractionComponent `yaml:"source" json:"source,omitempty"`
	Target                  []InteractionComponent `yaml:"target" json:"target,omitempty"`
	Steps                   []InteractionComponent `yaml:"steps" json:"steps,omitempty"`
}

// Components returns every interaction component of the question.
func (d QuestionDefinition) Components() []InteractionComponent {
	n := len(d.Choices) + len(d.Scale) + len(d.Source) + len(d.Target) + len(d.Steps)
	out := make([]InteractionComponent, 0, n)
	out = append(out, d.Choices...)
	out = append(out, d.Scale...)
	out = append(out, d.Source...)
	out = append(out, d.Target...)
	out = append(out, d.Steps...)
	return out
}

// QuestionFeedback configures what the learner sees after answering.
type QuestionFeedback struct {
	Immediate           bool        `yaml:"immediate" json:"immediate,omitempty"`
	ShowCorrectResponse bool        `yaml:"showCorrectResponse" json:"showCorrectResponse,omitempty"`
	CorrectText         LanguageMap `yaml:"correctText" json:"correctText,omitempty"`
	IncorrectText       LanguageMap `yaml:"incorrectText" json:"incorrectText,omitempty"`
	SuccessIcon         bool        `yaml:"successIcon" json:"successIcon,omitempty"`
	Text                LanguageMap `yaml:"text" json:"text,omitempty"`
}

// InteractionComponent is one selectable option of a question.
type InteractionComponent struct {
	ID          string      `yaml:"id" json:"id"`
	Description LanguageMap `yaml:"description" json:"description"`
	Score       *float64    `yaml:"score" json:"score,omitempty"`
}
