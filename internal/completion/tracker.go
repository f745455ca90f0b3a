// Package completion tracks when blocks, containers, paths and the unit become
// done. Done is a latch: once an entity is done it never reverts.
package completion

import (
	"errors"
	"fmt"
	"sort"

	"github.com/p-n-ai/pai-unit/internal/content"
)

// UnitID is the entity id of the unit itself.
const UnitID = "unit"

var (
	// ErrInvalidTransition is returned for events an entity cannot accept in
	// its current state. The tracker is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrUnknownEntity is returned for events addressed to an unknown id.
	ErrUnknownEntity = errors.New("unknown entity")
)

// State is the completion state of an entity.
type State int

const (
	NotVisible State = iota
	Visible
	Done
)

func (s State) String() string {
	switch s {
	case Visible:
		return "visible"
	case Done:
		return "done"
	default:
		return "not-visible"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "not-visible":
		*s = NotVisible
	case "visible":
		*s = Visible
	case "done":
		*s = Done
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// EntityKind distinguishes blocks from the aggregates above them.
type EntityKind string

const (
	EntityBlock     EntityKind = "block"
	EntityContainer EntityKind = "container"
	EntityPath      EntityKind = "path"
	EntityUnit      EntityKind = "unit"
)

// Transition is a state change of one entity.
type Transition struct {
	EntityID string     `json:"entityId"`
	Kind     EntityKind `json:"kind"`
	Previous State      `json:"previousState"`
	Next     State      `json:"newState"`
}

// Signal is a questionnaire-derived progress signal.
type Signal int

const (
	SignalInteracted Signal = iota
	SignalCompleted
	SignalPassed
)

type entity struct {
	id       string
	kind     EntityKind
	state    State
	parent   *entity
	children []*entity

	block         *content.Block
	completesUnit bool

	interacted bool
	ended      bool
	passed     bool
	finished   bool
	// items holds opened labels, actioned cards or actioned buttons.
	items map[int]bool
}

// Tracker holds the completion state of one unit for one learner. It is not
// safe for concurrent use.
type Tracker struct {
	unit     *entity
	entities map[string]*entity
	paths    map[string]*entity
	// pathButtons lists button groups with a button targeting each path.
	pathButtons map[string][]*entity
	pending     []Transition
}

// New builds a tracker for a validated unit.
func New(u *content.Unit) *Tracker {
	t := &Tracker{
		entities:    make(map[string]*entity),
		paths:       make(map[string]*entity),
		pathButtons: make(map[string][]*entity),
	}
	t.unit = t.add(UnitID, EntityUnit, nil)

	for i := range u.Containers {
		t.addPathContainer(&u.Containers[i], t.unit)
	}
	all := make([]*content.Path, 0, len(u.Paths)+1)
	if u.Help != nil {
		all = append(all, u.Help)
	}
	for i := range u.Paths {
		all = append(all, &u.Paths[i])
	}
	for _, p := range all {
		pe := t.add(p.ID, EntityPath, nil)
		t.paths[p.ID] = pe
		for i := range p.Containers {
			t.addPathContainer(&p.Containers[i], pe)
		}
	}
	return t
}

func (t *Tracker) add(id string, kind EntityKind, parent *entity) *entity {
	e := &entity{id: id, kind: kind, parent: parent}
	t.entities[id] = e
	if parent != nil {
		parent.children = append(parent.children, e)
	}
	return e
}

func (t *Tracker) addPathContainer(c *content.PathContainer, parent *entity) {
	ce := t.add(c.ID, EntityContainer, parent)
	ce.completesUnit = c.CompletesUnit()
	t.addBlocks(ce, c.Blocks)
}

func (t *Tracker) addBlocks(parent *entity, blocks []content.Block) {
	for i := range blocks {
		b := &blocks[i]
		be := t.add(fmt.Sprintf("%s/blocks/%d", parent.id, i), EntityBlock, parent)
		be.block = b
		be.items = make(map[int]bool)
		switch b.Type {
		case content.KindTabs:
			for j := range b.Tabs {
				te := t.add(fmt.Sprintf("%s/tabs/%d", be.id, j), EntityContainer, be)
				t.addBlocks(te, b.Tabs[j].Blocks)
			}
		case content.KindProcess:
			for j := range b.Steps {
				se := t.add(fmt.Sprintf("%s/steps/%d", be.id, j), EntityContainer, be)
				t.addBlocks(se, b.Steps[j].Blocks)
			}
		case content.KindButtonGroup:
			for _, btn := range b.Buttons {
				if content.ClassifyAction(btn.Action) == content.ActionPath {
					t.pathButtons[btn.Action] = append(t.pathButtons[btn.Action], be)
				}
			}
		}
	}
}

// State returns the state of an entity.
func (t *Tracker) State(id string) (State, bool) {
	e, ok := t.entities[id]
	if !ok {
		return NotVisible, false
	}
	return e.state, true
}

// Done reports whether the entity is done.
func (t *Tracker) Done(id string) bool {
	s, _ := t.State(id)
	return s == Done
}

// UnitDone reports whether the unit is done.
func (t *Tracker) UnitDone() bool {
	return t.unit.state == Done
}

// Block returns the block definition of a block entity.
func (t *Tracker) Block(id string) (*content.Block, bool) {
	e, ok := t.entities[id]
	if !ok || e.block == nil {
		return nil, false
	}
	return e.block, true
}

// BlockIDs returns the ids of every block of the given kind, ordered by id.
func (t *Tracker) BlockIDs(kind content.BlockKind) []string {
	var out []string
	for id, e := range t.entities {
		if e.block != nil && e.block.Type == kind {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// OwningContainer returns the path container id enclosing an entity.
func (t *Tracker) OwningContainer(id string) (string, bool) {
	e, ok := t.entities[id]
	if !ok {
		return "", false
	}
	for x := e; x != nil; x = x.parent {
		if x.kind == EntityContainer && (x.parent == nil || x.parent.kind != EntityBlock) {
			return x.id, true
		}
	}
	return "", false
}

// Status is a snapshot of one entity.
type Status struct {
	EntityID string     `json:"entityId"`
	Kind     EntityKind `json:"kind"`
	State    State      `json:"state"`
}

// Snapshot returns the state of every entity ordered by id.
func (t *Tracker) Snapshot() []Status {
	out := make([]Status, 0, len(t.entities))
	for _, e := range t.entities {
		out = append(out, Status{EntityID: e.id, Kind: e.kind, State: e.state})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (t *Tracker) lookup(id string) (*entity, error) {
	e, ok := t.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return e, nil
}

func (t *Tracker) flush() []Transition {
	out := t.pending
	t.pending = nil
	return out
}

func (t *Tracker) set(e *entity, s State) {
	if e.state >= s {
		return
	}
	t.pending = append(t.pending, Transition{EntityID: e.id, Kind: e.kind, Previous: e.state, Next: s})
	e.state = s
}
