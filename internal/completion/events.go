package completion

import (
	"fmt"

	"github.com/p-n-ai/pai-unit/internal/content"
)

// Visible records that an entity became visible to the learner. Visibility
// propagates to its ancestors. A repeated Visible on a visible entity is a
// no-op; on a done entity it is rejected.
func (t *Tracker) Visible(id string) ([]Transition, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.state == Done {
		return nil, fmt.Errorf("%w: %s is already done", ErrInvalidTransition, id)
	}
	t.reveal(e)
	return t.flush(), nil
}

// Interacted records a learner interaction. index selects the card, label,
// button, tab or step for kinds that have them and is ignored otherwise.
func (t *Tracker) Interacted(id string, index int) ([]Transition, error) {
	e, err := t.accepting(id)
	if err != nil {
		return nil, err
	}
	if e.block == nil {
		return nil, fmt.Errorf("%w: %s %s does not accept interactions", ErrInvalidTransition, e.kind, id)
	}

	b := e.block
	switch b.Type {
	case content.KindVideo, content.KindYouTube:
		e.interacted = true
	case content.KindFlashcard:
		if err := checkIndex(id, index, len(b.Cards)); err != nil {
			return nil, err
		}
		e.interacted = true
		e.items[index] = true
	case content.KindLabeledImage:
		if err := checkIndex(id, index, len(b.Labels)); err != nil {
			return nil, err
		}
		e.interacted = true
		e.items[index] = true
	case content.KindButtonGroup:
		if err := checkIndex(id, index, len(b.Buttons)); err != nil {
			return nil, err
		}
		if b.Single {
			for other := range e.items {
				if other != index {
					return nil, fmt.Errorf("%w: %s allows a single button", ErrInvalidTransition, id)
				}
			}
		}
		e.interacted = true
		e.items[index] = true
	case content.KindTabs:
		if err := checkIndex(id, index, len(b.Tabs)); err != nil {
			return nil, err
		}
		if index != 0 {
			e.interacted = true
		}
		t.set(e.children[index], Visible)
	case content.KindProcess:
		if err := checkIndex(id, index, len(b.Steps)); err != nil {
			return nil, err
		}
		e.interacted = true
		t.set(e.children[index], Visible)
	default:
		return nil, fmt.Errorf("%w: %s blocks do not accept interactions", ErrInvalidTransition, b.Type)
	}

	t.settle(e)
	return t.flush(), nil
}

// Completed records that a video or YouTube block reached its end.
func (t *Tracker) Completed(id string) ([]Transition, error) {
	e, err := t.accepting(id)
	if err != nil {
		return nil, err
	}
	if e.block == nil || (e.block.Type != content.KindVideo && e.block.Type != content.KindYouTube) {
		return nil, fmt.Errorf("%w: %s does not accept completed events", ErrInvalidTransition, id)
	}
	e.ended = true
	t.settle(e)
	return t.flush(), nil
}

// Signal feeds questionnaire progress into a questionnaire block. Signals for
// a block that is already done are accepted and ignored.
func (t *Tracker) Signal(id string, s Signal) ([]Transition, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.block == nil || e.block.Type != content.KindQuestionnaire {
		return nil, fmt.Errorf("%w: %s is not a questionnaire", ErrInvalidTransition, id)
	}
	if e.state == NotVisible {
		return nil, fmt.Errorf("%w: %s is not visible", ErrInvalidTransition, id)
	}
	if e.state == Done {
		return nil, nil
	}

	switch s {
	case SignalInteracted:
		e.interacted = true
	case SignalCompleted:
		e.finished = true
	case SignalPassed:
		e.passed = true
	}
	t.settle(e)
	return t.flush(), nil
}

// accepting returns the entity if it can take a learner event.
func (t *Tracker) accepting(id string) (*entity, error) {
	e, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	switch e.state {
	case NotVisible:
		return nil, fmt.Errorf("%w: %s is not visible", ErrInvalidTransition, id)
	case Done:
		return nil, fmt.Errorf("%w: %s is already done", ErrInvalidTransition, id)
	}
	return e, nil
}

func checkIndex(id string, index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%w: %s has no item %d", ErrInvalidTransition, id, index)
	}
	return nil
}

// reveal marks e and its ancestors visible, opens the initial tab or step of
// e, then settles everything it touched.
func (t *Tracker) reveal(e *entity) {
	var touched []*entity
	for x := e; x != nil; x = x.parent {
		if x.state != NotVisible {
			continue
		}
		t.set(x, Visible)
		touched = append(touched, x)
		if x.block != nil && (x.block.Type == content.KindTabs || x.block.Type == content.KindProcess) {
			t.set(x.children[0], Visible)
		}
	}
	// A path container's path becomes visible with it; the unit only through
	// its own containers.
	for _, x := range touched {
		t.settle(x)
	}
	if e.state != Done {
		t.settle(e)
	}
}

// settle re-evaluates e and every ancestor, latching those whose predicate now
// holds.
func (t *Tracker) settle(e *entity) {
	for x := e; x != nil; x = x.parent {
		if x.state != Visible || !t.satisfied(x) {
			continue
		}
		t.markDone(x)
	}
}

func (t *Tracker) markDone(e *entity) {
	t.set(e, Done)
	if e.completesUnit && t.unit.state != Done {
		t.set(t.unit, Done)
	}
	if e.kind == EntityPath {
		for _, bg := range t.pathButtons[e.id] {
			t.settle(bg)
		}
	}
}

// satisfied is the single place where done predicates are decided.
func (t *Tracker) satisfied(e *entity) bool {
	switch e.kind {
	case EntityUnit:
		for _, c := range e.children {
			if c.completesUnit && c.state == Done {
				return true
			}
		}
		return false
	case EntityContainer, EntityPath:
		return allDone(e.children)
	}

	b := e.block
	switch b.DoneCriteria {
	case content.CriteriaNone, content.CriteriaExperienced:
		return true
	case content.CriteriaInteracted:
		return e.interacted
	case content.CriteriaPassed:
		return e.passed
	}

	switch b.Type {
	case content.KindVideo, content.KindYouTube:
		return e.ended
	case content.KindFlashcard:
		return len(e.items) == len(b.Cards)
	case content.KindLabeledImage:
		return len(e.items) >= minimum(b.MinimumLabelsOpened, len(b.Labels))
	case content.KindButtonGroup:
		return t.buttonsDone(e) >= minimum(b.MinimumButtonsDone, len(b.Buttons))
	case content.KindTabs:
		return countDone(e.children) >= minimum(b.MinimumTabsDone, len(b.Tabs))
	case content.KindProcess:
		return allDone(e.children)
	case content.KindQuestionnaire:
		return e.finished
	case content.KindHTML:
		return true
	}
	return false
}

// buttonsDone counts buttons that are done: URL and container buttons once
// actioned, path buttons once their path is done.
func (t *Tracker) buttonsDone(e *entity) int {
	n := 0
	for i, btn := range e.block.Buttons {
		if content.ClassifyAction(btn.Action) == content.ActionPath {
			if p, ok := t.paths[btn.Action]; ok && p.state == Done {
				n++
			}
			continue
		}
		if e.items[i] {
			n++
		}
	}
	return n
}

func minimum(v *int, population int) int {
	if v == nil {
		return population
	}
	return *v
}

func countDone(list []*entity) int {
	n := 0
	for _, e := range list {
		if e.state == Done {
			n++
		}
	}
	return n
}

func allDone(list []*entity) bool {
	return len(list) > 0 && countDone(list) == len(list)
}
