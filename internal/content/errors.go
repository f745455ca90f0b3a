package content

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructural is matched by every structural validation failure.
var ErrStructural = errors.New("structural validation error")

// Problem is a single violated invariant, located by its path in the document.
type Problem struct {
	Path    string
	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// ValidationError lists every structural problem found in a unit.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", ErrStructural, e.Problems[0])
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s: %d problems: %s", ErrStructural, len(e.Problems), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrStructural
}
