// Package ladder is the command facade: the typed engine calls the
// presentation layer invokes, with guard checks and a uniform error
// taxonomy on top of the core packages.
package ladder

import (
	"errors"
	"fmt"

	"ladder-platform/backend/internal/admin"
	"ladder-platform/backend/internal/match"
	"ladder-platform/backend/internal/queue"
	"ladder-platform/backend/internal/replay"
	"ladder-platform/backend/internal/store"
	"ladder-platform/backend/internal/validation"
)

// Kind classifies an error for the presentation layer.
type Kind string

const (
	// KindValidation marks inputs violating a stated constraint.
	KindValidation Kind = "validation"
	// KindAuth marks callers lacking permission (banned, not admin,
	// not a participant).
	KindAuth Kind = "authorization"
	// KindState marks operations invalid in the current state
	// (double-queue, closed match, exhausted aborts).
	KindState Kind = "state"
	// KindNotFound marks missing players, matches or ratings.
	KindNotFound Kind = "not_found"
	// KindExternal marks transient downstream failures.
	KindExternal Kind = "external"
	// KindIntegrity marks anomalies the engine refuses to process.
	KindIntegrity Kind = "integrity"
)

// Error is the structured error every command returns on failure. The
// message is user-visible and never leaks internal field names.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// KindOf extracts the kind of a command error, defaulting to external.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindExternal
}

func newError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// wrapErr classifies the sentinel errors of the core packages.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	switch {
	case errors.Is(err, validation.ErrInvalidName),
		errors.Is(err, validation.ErrReservedName),
		errors.Is(err, validation.ErrInvalidTag),
		errors.Is(err, validation.ErrInvalidCountry),
		errors.Is(err, validation.ErrInvalidRegion),
		errors.Is(err, validation.ErrInvalidRace),
		errors.Is(err, validation.ErrNoRacesSelected),
		errors.Is(err, validation.ErrStringTooLong),
		errors.Is(err, validation.ErrStringTooShort),
		errors.Is(err, match.ErrInvalidOutcome):
		return newError(KindValidation, err, err.Error())

	case errors.Is(err, admin.ErrNotAdmin),
		errors.Is(err, admin.ErrNotOwner),
		errors.Is(err, match.ErrNotParticipant),
		errors.Is(err, replay.ErrNotParticipant):
		return newError(KindAuth, err, err.Error())

	case errors.Is(err, queue.ErrAlreadyQueued),
		errors.Is(err, match.ErrMatchClosed),
		errors.Is(err, match.ErrNoAbortCredit),
		errors.Is(err, admin.ErrNotQueued),
		errors.Is(err, admin.ErrBadResolution):
		return newError(KindState, err, err.Error())

	case errors.Is(err, store.ErrPlayerNotFound),
		errors.Is(err, store.ErrMatchNotFound),
		errors.Is(err, store.ErrRatingNotFound):
		return newError(KindNotFound, err, err.Error())

	case errors.Is(err, admin.ErrNegativeValue):
		return newError(KindIntegrity, err, err.Error())
	}
	return newError(KindExternal, err, "internal error, try again later")
}
