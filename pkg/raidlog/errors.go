package raidlog

import (
	"errors"

	"github.com/raidframer/raidlog-go/internal/filter"
	"github.com/raidframer/raidlog-go/internal/locator"
	"github.com/raidframer/raidlog-go/internal/tailer"
)

// Sentinel errors returned by this package.
var (
	// ErrNotFound is reported when no combat log file can be resolved.
	// The engine treats it as a transient state and keeps searching.
	ErrNotFound = locator.ErrNotFound

	// ErrUnreadable is reported when an existing log file cannot be read.
	ErrUnreadable = tailer.ErrUnreadable

	// ErrInvalidRule is returned for a malformed filter rule.
	ErrInvalidRule = filter.ErrInvalidRule

	// ErrAlreadyStarted is returned by Start on an engine already running.
	ErrAlreadyStarted = errors.New("raidlog: engine already started")

	// ErrStopped is returned by Start on an engine that was stopped.
	ErrStopped = errors.New("raidlog: engine stopped")
)
