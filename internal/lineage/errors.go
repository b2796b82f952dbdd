// File path: internal/lineage/errors.go
package lineage

import "fmt"

// UnknownDataframeError reports an operation against a dataframe ID that is
// not registered in the graph. The graph is left unchanged.
type UnknownDataframeError struct {
	ID string
}

func (e *UnknownDataframeError) Error() string {
	return fmt.Sprintf("unknown dataframe %q", e.ID)
}

// OwnershipConflictError reports a registration of an existing dataframe ID
// under a different owning pipeline. The graph is left unchanged.
type OwnershipConflictError struct {
	ID      string
	Owner   string
	Claimed string
}

func (e *OwnershipConflictError) Error() string {
	return fmt.Sprintf("dataframe %q is owned by pipeline %q, not %q", e.ID, e.Owner, e.Claimed)
}

// ValidationError reports a record that violates a structural invariant, such
// as a negative row count or an inverted coverage interval.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
