package lock

import "errors"

// ErrBusy is returned when a user's previous action is still running.
var ErrBusy = errors.New("previous action still in progress")
