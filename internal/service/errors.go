package service

import (
	"fmt"
	"sort"
)

// BatchError records a failure for one user (and optionally one activity)
// that did not abort the batch
type BatchError struct {
	UserID     int64  `json:"user_id"`
	ActivityID int64  `json:"activity_id,omitempty"`
	Stage      string `json:"stage"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func newBatchError(userID, activityID int64, stage string, err error) BatchError {
	return BatchError{
		UserID:     userID,
		ActivityID: activityID,
		Stage:      stage,
		Message:    err.Error(),
		Err:        err,
	}
}

func (e BatchError) Error() string {
	if e.ActivityID != 0 {
		return fmt.Sprintf("user %d activity %d (%s): %s", e.UserID, e.ActivityID, e.Stage, e.Message)
	}
	return fmt.Sprintf("user %d (%s): %s", e.UserID, e.Stage, e.Message)
}

func (e BatchError) Unwrap() error {
	return e.Err
}

func sortBatchErrors(errs []BatchError) {
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].UserID != errs[j].UserID {
			return errs[i].UserID < errs[j].UserID
		}
		return errs[i].ActivityID < errs[j].ActivityID
	})
}
