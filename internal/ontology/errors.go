package ontology

import (
	"fmt"
	"strings"
)

// LoadError reports a malformed or inconsistent ontology. It is fatal at startup.
// Problems lists every issue found so an operator can fix them in one pass.
type LoadError struct {
	Source   string
	Problems []string
	Cause    error
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	sb.WriteString("ontology load error")
	if e.Source != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Source))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	if len(e.Problems) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.Problems, "; "))
	}
	return sb.String()
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
