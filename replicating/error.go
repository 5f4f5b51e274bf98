package replicating

import (
	"errors"
	"fmt"

	"github.com/fishy/docsync"
)

// Make sure *ReplicaError satisfies error interface.
var _ error = (*ReplicaError)(nil)

// ReplicaError is returned when a change succeeded in the master collection
// but failed in the replica.
type ReplicaError struct {
	Op  string
	Err error
}

func (err *ReplicaError) Error() string {
	return fmt.Sprintf("replicating: %s failed on replica: %v", err.Op, err.Err)
}

func (err *ReplicaError) Unwrap() error {
	return err.Err
}

// IsReplicaError checks whether an error is a ReplicaError.
func IsReplicaError(err error) bool {
	var target *ReplicaError
	return errors.As(err, &target)
}

type notLocalError struct {
	name string
	col  docsync.Collection
}

func (err *notLocalError) Error() string {
	return fmt.Sprintf("replicating: collection %q is %T, not a docsync.Local", err.name, err.col)
}
