package services

import (
	"errors"
	"fmt"

	"github.com/selveresta/projectQuestBot/models"
)

// ErrLockContention means another process already holds the polling lock.
// The attempting process must not start consuming events.
var ErrLockContention = errors.New("bot long polling is already running")

// DuplicateContactError reports a unique contact field colliding with
// another participant. Recoverable: the caller asks for a different value.
type DuplicateContactError struct {
	Field             models.ContactField
	Value             string
	ConflictingUserID int64
}

func (e *DuplicateContactError) Error() string {
	return fmt.Sprintf("contact field %s with value %q is already used by participant %d",
		e.Field, e.Value, e.ConflictingUserID)
}

// IsDuplicateContact unwraps err into a DuplicateContactError when possible.
func IsDuplicateContact(err error) (*DuplicateContactError, bool) {
	var dup *DuplicateContactError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}
