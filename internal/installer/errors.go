package installer

import "fmt"

// Kind classifies an orchestration error so callers can branch without
// string matching.
type Kind string

const (
	// KindGraph covers unknown names and dependency cycles; the batch
	// never starts.
	KindGraph Kind = "graph"
	// KindPrerequisite covers failed pre-flight checks, scoped to one
	// component (or to the batch for system requirements).
	KindPrerequisite Kind = "prerequisite"
	// KindBackup covers staging or compression failures; fatal to the
	// whole batch.
	KindBackup Kind = "backup"
	// KindIO covers copy failures partway through a manifest; scoped
	// to one component, not rolled back.
	KindIO Kind = "io"
	// KindValidation covers post-install verification failures;
	// reported, never undone.
	KindValidation Kind = "validation"
	// KindMetadata covers an unparsable metadata store.
	KindMetadata Kind = "metadata"
)

// Error tags an underlying failure with its kind and, when scoped, the
// component it belongs to.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: component %s: %v", e.Kind, e.Component, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindErr(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}
