package content

import (
	"fmt"
	"sort"
	"strconv"
)

// Node is a questionnaire part placed in an Arena. Branches share nodes: the
// same node may be reachable from several score bands or parts.
type Node struct {
	ID   string
	Part *Part
	// Branches maps score keys to the next node. A nil value is an explicit
	// "no next part" entry.
	Branches map[int]*Node
}

// Arena owns every part of one questionnaire, keyed by id.
type Arena struct {
	Root  *Node
	nodes map[string]*Node
}

// Node returns the part with the given id.
func (a *Arena) Node(id string) (*Node, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

// Nodes returns all parts ordered by id.
func (a *Arena) Nodes() []*Node {
	out := make([]*Node, 0, len(a.nodes))
	for _, n := range a.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BuildArena resolves refs in the part tree rooted at first and verifies that
// the resulting graph is acyclic. Generated ids follow the declaration path,
// e.g. "first/next/5".
func BuildArena(first *Part) (*Arena, error) {
	v := &validator{}
	a := v.arena("", first)
	if len(v.problems) > 0 {
		return nil, &ValidationError{Problems: v.problems}
	}
	return a, nil
}

func (v *validator) arena(path string, first *Part) *Arena {
	if first == nil {
		v.add(path+"first", "questionnaire must declare a first part")
		return nil
	}
	if first.Ref != "" {
		v.add(path+"first", "first part cannot be a ref")
		return nil
	}

	declared := make(map[string]*Part)
	ids := make(map[*Part]string)
	var collect func(p *Part, id, loc string)
	collect = func(p *Part, id, loc string) {
		if p == nil || p.Ref != "" {
			return
		}
		if _, seen := ids[p]; seen {
			return
		}
		if p.ID != "" {
			id = p.ID
		}
		if _, dup := declared[id]; dup {
			v.add(loc, fmt.Sprintf("duplicate part id %q", id))
			return
		}
		declared[id] = p
		ids[p] = id
		for _, k := range sortedKeys(p.Next) {
			collect(p.Next[k], id+"/next/"+strconv.Itoa(k), fmt.Sprintf("%s.next[%d]", loc, k))
		}
	}
	collect(first, "first", path+"first")

	nodes := make(map[string]*Node, len(declared))
	for id, p := range declared {
		nodes[id] = &Node{ID: id, Part: p}
	}
	for id, p := range declared {
		n := nodes[id]
		if len(p.Next) == 0 {
			continue
		}
		n.Branches = make(map[int]*Node, len(p.Next))
		for k, next := range p.Next {
			if next == nil {
				n.Branches[k] = nil
				continue
			}
			target := next
			if next.Ref != "" {
				if len(next.Questions) > 0 {
					v.add(fmt.Sprintf("%s.next[%d]", id, k), "a ref part cannot declare questions")
				}
				resolved, ok := declared[next.Ref]
				if !ok {
					v.add(fmt.Sprintf("%s.next[%d]", id, k), fmt.Sprintf("unknown part ref %q", next.Ref))
					continue
				}
				target = resolved
			}
			n.Branches[k] = nodes[ids[target]]
		}
	}

	a := &Arena{Root: nodes[ids[first]], nodes: nodes}
	if cycle := findCycle(a); cycle != "" {
		v.add(path+"first", fmt.Sprintf("part graph has a cycle through %q", cycle))
	}
	return a
}

func findCycle(a *Arena) string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[*Node]int, len(a.nodes))
	var visit func(n *Node) string
	visit = func(n *Node) string {
		color[n] = grey
		for _, k := range sortedKeys(n.Branches) {
			next := n.Branches[k]
			if next == nil {
				continue
			}
			switch color[next] {
			case grey:
				return next.ID
			case white:
				if id := visit(next); id != "" {
					return id
				}
			}
		}
		color[n] = black
		return ""
	}
	for _, n := range a.Nodes() {
		if color[n] == white {
			if id := visit(n); id != "" {
				return id
			}
		}
	}
	return ""
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
