package content

import (
	"fmt"
	"strings"
)

var allowedCriteria = map[BlockKind][]DoneCriteria{
	KindHTML:          {CriteriaExperienced},
	KindVideo:         {CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
	KindYouTube:       {CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
	KindFlashcard:     {CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
	KindLabeledImage:  {CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
	KindButtonGroup:   {CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
	KindTabs:          {CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
	KindProcess:       {CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
	KindQuestionnaire: {CriteriaPassed, CriteriaExperienced, CriteriaCompleted, CriteriaInteracted},
}

var (
	tabBlockKinds  = []BlockKind{KindHTML, KindYouTube}
	stepBlockKinds = []BlockKind{KindHTML, KindYouTube, KindButtonGroup}
)

type validator struct {
	problems   []Problem
	containers map[string]bool
	paths      map[string]bool
	actions    []actionRef
}

type actionRef struct {
	path   string
	action string
}

func (v *validator) add(path, msg string) {
	v.problems = append(v.problems, Problem{Path: path, Message: msg})
}

// Validate checks every documented invariant of the unit and returns a
// *ValidationError listing all violations, or nil.
func Validate(u *Unit) error {
	if u == nil {
		return &ValidationError{Problems: []Problem{{Message: "unit is nil"}}}
	}
	v := &validator{
		containers: make(map[string]bool),
		paths:      make(map[string]bool),
	}
	v.unit(u)
	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

func (v *validator) unit(u *Unit) {
	if len(u.Containers) == 0 {
		v.add("containers", "unit must have at least one container")
	} else if !u.Containers[len(u.Containers)-1].CompletesUnit() {
		v.add(fmt.Sprintf("containers[%d]", len(u.Containers)-1), "last container must complete the unit")
	}

	// Path ids first so that button actions can be checked in one pass.
	if u.Help != nil {
		v.pathID("help", u.Help.ID)
	}
	for i, p := range u.Paths {
		v.pathID(fmt.Sprintf("paths[%d]", i), p.ID)
	}

	for i := range u.Containers {
		v.pathContainer(fmt.Sprintf("containers[%d]", i), &u.Containers[i])
	}
	if u.Help != nil {
		v.path("help", u.Help)
	}
	for i := range u.Paths {
		v.path(fmt.Sprintf("paths[%d]", i), &u.Paths[i])
	}

	for _, ref := range v.actions {
		switch ClassifyAction(ref.action) {
		case ActionPath:
			if !v.paths[ref.action] {
				v.add(ref.path, fmt.Sprintf("action references unknown path %q", ref.action))
			}
		case ActionPathContainer:
			if !v.containers[ref.action] {
				v.add(ref.path, fmt.Sprintf("action references unknown container %q", ref.action))
			}
		}
	}
}

func (v *validator) pathID(loc, id string) {
	if !isID(id, PathIDPrefix) {
		v.add(loc+".id", fmt.Sprintf("path id %q must start with %q", id, PathIDPrefix))
		return
	}
	if v.paths[id] {
		v.add(loc+".id", fmt.Sprintf("duplicate path id %q", id))
	}
	v.paths[id] = true
}

func (v *validator) path(loc string, p *Path) {
	if len(p.Containers) == 0 {
		v.add(loc+".containers", "path must have at least one container")
	}
	for i := range p.Containers {
		v.pathContainer(fmt.Sprintf("%s.containers[%d]", loc, i), &p.Containers[i])
	}
}

func (v *validator) pathContainer(loc string, c *PathContainer) {
	switch {
	case !isID(c.ID, ContainerIDPrefix):
		v.add(loc+".id", fmt.Sprintf("container id %q must start with %q", c.ID, ContainerIDPrefix))
	case v.containers[c.ID]:
		v.add(loc+".id", fmt.Sprintf("duplicate container id %q", c.ID))
	default:
		v.containers[c.ID] = true
	}
	v.container(loc, &c.Container, nil)
}

func (v *validator) container(loc string, c *Container, kinds []BlockKind) {
	if len(c.Blocks) == 0 {
		v.add(loc+".blocks", "container must have at least one block")
	}
	for i := range c.Blocks {
		bloc := fmt.Sprintf("%s.blocks[%d]", loc, i)
		if kinds != nil && !contains(kinds, c.Blocks[i].Type) {
			v.add(bloc+".type", fmt.Sprintf("block type %q not allowed here", c.Blocks[i].Type))
			continue
		}
		v.block(bloc, &c.Blocks[i])
	}
}

func (v *validator) block(loc string, b *Block) {
	allowed, known := allowedCriteria[b.Type]
	if !known {
		v.add(loc+".type", fmt.Sprintf("unknown block type %q", b.Type))
		return
	}
	if b.DoneCriteria != CriteriaNone && !contains(allowed, b.DoneCriteria) {
		v.add(loc+".doneCriteria", fmt.Sprintf("%q is not allowed for %s blocks", b.DoneCriteria, b.Type))
	}

	switch b.Type {
	case KindHTML, KindVideo:
		if b.URL == "" {
			v.add(loc+".url", "url is required")
		}
	case KindYouTube:
		if b.VideoID == "" {
			v.add(loc+".videoId", "videoId is required")
		}
	case KindFlashcard:
		if len(b.Cards) == 0 {
			v.add(loc+".cards", "flashcard must have at least one card")
		}
	case KindLabeledImage:
		if b.DoneCriteria == CriteriaNone {
			v.add(loc+".doneCriteria", "doneCriteria is required for labeled-image blocks")
		}
		if len(b.Labels) == 0 {
			v.add(loc+".labels", "labeled-image must have at least one label")
		}
		for i, l := range b.Labels {
			if l.X <= 0 || l.X > 100 || l.Y <= 0 || l.Y > 100 {
				v.add(fmt.Sprintf("%s.labels[%d]", loc, i), "label coordinates must be in (0, 100]")
			}
		}
		v.minimum(loc+".minimumLabelsOpened", b.MinimumLabelsOpened, len(b.Labels))
	case KindButtonGroup:
		v.buttonGroup(loc, b)
	case KindTabs:
		if len(b.Tabs) == 0 {
			v.add(loc+".tabs", "tabs must have at least one tab")
		}
		for i := range b.Tabs {
			v.container(fmt.Sprintf("%s.tabs[%d]", loc, i), &b.Tabs[i], tabBlockKinds)
		}
		v.minimum(loc+".minimumTabsDone", b.MinimumTabsDone, len(b.Tabs))
	case KindProcess:
		if len(b.Steps) < 2 {
			v.add(loc+".steps", "process must have at least two steps")
		}
		for i := range b.Steps {
			v.container(fmt.Sprintf("%s.steps[%d]", loc, i), &b.Steps[i], stepBlockKinds)
		}
	case KindQuestionnaire:
		v.questionnaire(loc, b)
	}
}

func (v *validator) buttonGroup(loc string, b *Block) {
	if len(b.Buttons) == 0 {
		v.add(loc+".buttons", "button-group must have at least one button")
	}
	v.minimum(loc+".minimumButtonsDone", b.MinimumButtonsDone, len(b.Buttons))
	// A single-choice group completes after one press.
	if b.Single && b.DoneCriteria == CriteriaCompleted {
		if b.MinimumButtonsDone != nil && *b.MinimumButtonsDone != 1 {
			v.add(loc+".minimumButtonsDone", "must be 1 when single is set")
		} else if b.MinimumButtonsDone == nil && len(b.Buttons) > 1 {
			v.add(loc+".doneCriteria", "completed requires minimumButtonsDone 1 when single is set")
		}
	}
	for i, btn := range b.Buttons {
		bloc := fmt.Sprintf("%s.buttons[%d].action", loc, i)
		if ClassifyAction(btn.Action) == ActionInvalid {
			v.add(bloc, fmt.Sprintf("invalid action %q", btn.Action))
			continue
		}
		v.actions = append(v.actions, actionRef{path: bloc, action: btn.Action})
	}
}

func (v *validator) questionnaire(loc string, b *Block) {
	if b.Attempts != nil && *b.Attempts <= 0 {
		v.add(loc+".attempts", "attempts must be greater than 0")
	}
	a := v.arena(loc+".", b.First)
	if a == nil {
		return
	}
	hasPassCriteria := false
	for _, n := range a.Nodes() {
		v.part(loc+"."+n.ID, n.Part)
		if n.Part.PassCriteria != nil && n.Part.Scored() {
			hasPassCriteria = true
		}
	}
	if b.DoneCriteria == CriteriaPassed && !hasPassCriteria {
		v.add(loc+".doneCriteria", "passed requires at least one part with passCriteria")
	}
}

func (v *validator) part(loc string, p *Part) {
	if len(p.Questions) == 0 {
		v.add(loc+".questions", "part must have at least one question")
	}
	if p.NumberOfQuestions != nil {
		if n := *p.NumberOfQuestions; n <= 0 || n > len(p.Questions) {
			v.add(loc+".numberOfQuestions", fmt.Sprintf("must be in 1..%d, got %d", len(p.Questions), n))
		}
	}
	if p.TimeLimit != nil && *p.TimeLimit <= 0 {
		v.add(loc+".timeLimit", "timeLimit must be greater than 0")
	}
	if p.PassCriteria != nil && !p.Scored() {
		v.add(loc+".passCriteria", "passCriteria requires a scored part")
	}
	for i, q := range p.Questions {
		qloc := fmt.Sprintf("%s.questions[%d]", loc, i)
		d := q.Definition
		if d.InteractionType == "" {
			v.add(qloc+".interactionType", "interactionType is required")
		}
		if d.Score != nil && len(d.CorrectResponsesPattern) == 0 {
			v.add(qloc+".score", "a scored question needs correctResponsesPattern")
		}
		for _, c := range d.Components() {
			if c.ID == "" || strings.ContainsAny(c.ID, "[]") {
				v.add(qloc, fmt.Sprintf("invalid component id %q", c.ID))
			}
		}
	}
}

func (v *validator) minimum(loc string, min *int, population int) {
	if min == nil {
		return
	}
	if *min <= 0 || *min > population {
		v.add(loc, fmt.Sprintf("must be in 1..%d, got %d", population, *min))
	}
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
