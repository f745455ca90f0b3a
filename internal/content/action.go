package content

import (
	"fmt"
	"strings"
)

// ActionKind classifies the target of a button action.
type ActionKind int

const (
	ActionInvalid ActionKind = iota
	ActionURL
	ActionPath
	ActionPathContainer
)

func (k ActionKind) String() string {
	switch k {
	case ActionURL:
		return "url"
	case ActionPath:
		return "path"
	case ActionPathContainer:
		return "container"
	default:
		return "invalid"
	}
}

func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(b []byte) error {
	for _, c := range []ActionKind{ActionInvalid, ActionURL, ActionPath, ActionPathContainer} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown action kind %q", b)
}

const (
	PathIDPrefix      = "paths/"
	ContainerIDPrefix = "containers/"
)

var urlSchemes = []string{"https://", "http://", "mailto:", "tel:"}

// ClassifyAction returns the kind of a button action string.
func ClassifyAction(action string) ActionKind {
	switch {
	case isID(action, PathIDPrefix):
		return ActionPath
	case isID(action, ContainerIDPrefix):
		return ActionPathContainer
	}
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(action, scheme) && len(action) > len(scheme) {
			return ActionURL
		}
	}
	return ActionInvalid
}

func isID(s, prefix string) bool {
	return strings.HasPrefix(s, prefix) && len(s) > len(prefix) && !strings.ContainsAny(s[len(prefix):], " ?#")
}
