// File path: internal/dataset/errors.go
package dataset

import "fmt"

// DataUnavailableError reports that the upstream pull layer could not
// materialize a dataset. The core never retries; retry policy belongs to the
// invoking pipeline step.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data unavailable from %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("data unavailable from %s", e.Source)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }
