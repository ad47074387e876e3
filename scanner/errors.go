package scanner

import "fmt"

// Stages at which a single item can fail without aborting the run
const (
	StageStorePost  = "store_post"
	StageStoreIssue = "store_issue"
)

// RecoverableError is a per-item persistence failure. The run skips the item,
// counts it and carries on with the rest of the batch.
type RecoverableError struct {
	Stage string
	Key   string
	Err   error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}
