// Package navigation resolves button actions into redirects and tracks the
// return stack of path detours.
package navigation

import (
	"fmt"
	"slices"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/content"
)

// Redirect tells the caller where an activated button leads.
type Redirect struct {
	Kind   content.ActionKind `json:"kind"`
	Target string             `json:"target"`
	// Origin is the block that issued the redirect.
	Origin string `json:"origin"`
}

// Return is reported when a path entered through a redirect becomes done.
// The learner goes back to Block inside Container.
type Return struct {
	PathID    string `json:"pathId"`
	Block     string `json:"block"`
	Container string `json:"container"`
}

// Coordinator follows button actions for one tracker. It is not safe for
// concurrent use.
type Coordinator struct {
	tracker *completion.Tracker
	stack   []Return
}

// New returns a coordinator over tracker.
func New(tracker *completion.Tracker) *Coordinator {
	return &Coordinator{tracker: tracker}
}

// Classify returns the kind of a button action.
func Classify(action string) content.ActionKind {
	return content.ClassifyAction(action)
}

// Activate follows button index of a button-group block. The button is
// recorded with the tracker unless the group is already done. Path redirects
// push the origin onto the return stack.
func (c *Coordinator) Activate(blockID string, button int) (Redirect, []completion.Transition, error) {
	b, ok := c.tracker.Block(blockID)
	if !ok {
		return Redirect{}, nil, fmt.Errorf("%w: %s", completion.ErrUnknownEntity, blockID)
	}
	if b.Type != content.KindButtonGroup {
		return Redirect{}, nil, fmt.Errorf("%w: %s is not a button group", completion.ErrInvalidTransition, blockID)
	}
	if button < 0 || button >= len(b.Buttons) {
		return Redirect{}, nil, fmt.Errorf("%w: %s has no button %d", completion.ErrInvalidTransition, blockID, button)
	}

	action := b.Buttons[button].Action
	kind := Classify(action)
	if kind == content.ActionInvalid {
		return Redirect{}, nil, fmt.Errorf("%w: %s button %d has invalid action %q", completion.ErrInvalidTransition, blockID, button, action)
	}

	var transitions []completion.Transition
	if !c.tracker.Done(blockID) {
		tr, err := c.tracker.Interacted(blockID, button)
		if err != nil {
			return Redirect{}, nil, err
		}
		transitions = tr
	}

	if kind == content.ActionPath && !c.tracker.Done(action) {
		container, _ := c.tracker.OwningContainer(blockID)
		c.stack = append(c.stack, Return{PathID: action, Block: blockID, Container: container})
	}
	return Redirect{Kind: kind, Target: action, Origin: blockID}, transitions, nil
}

// Observe pops the return stack for every path that became done in
// transitions. Returns are reported innermost first.
func (c *Coordinator) Observe(transitions []completion.Transition) []Return {
	var out []Return
	for _, tr := range transitions {
		if tr.Kind != completion.EntityPath || tr.Next != completion.Done {
			continue
		}
		for i := len(c.stack) - 1; i >= 0; i-- {
			if c.stack[i].PathID == tr.EntityID {
				out = append(out, c.stack[i])
				c.stack = slices.Delete(c.stack, i, i+1)
			}
		}
	}
	return out
}

// Pending returns the open path detours, outermost first.
func (c *Coordinator) Pending() []Return {
	return slices.Clone(c.stack)
}

// Satisfied reports whether the target of action is already done. URL
// targets are never tracked and are never satisfied.
func (c *Coordinator) Satisfied(action string) bool {
	switch Classify(action) {
	case content.ActionPath, content.ActionPathContainer:
		return c.tracker.Done(action)
	}
	return false
}
