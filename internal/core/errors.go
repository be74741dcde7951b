package core

import "errors"

var (
	ErrParseCmd    = errors.New("cannot parse arguments")
	ErrModeArg     = errors.New("mode argument is required")
	ErrUnknownMode = errors.New("unknown mode")

	ErrStoreConn = errors.New("store connection failure")
	ErrFeedConn  = errors.New("change-feed connection failure")

	ErrNotFound     = errors.New("record not found")
	ErrFieldIsEmpty = errors.New("field is empty")
	ErrItemIndex    = errors.New("item index out of range")
	ErrOrderServed  = errors.New("order already served")
)

// WaitTime bounds single store and broker calls, in seconds.
const WaitTime = 5
