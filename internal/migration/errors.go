package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"

	"reshelve/internal/lease"
)

// ErrorClass is the stage a failure belongs to.
type ErrorClass string

const (
	ClassPlanning   ErrorClass = "planning"
	ClassValidation ErrorClass = "validation"
	ClassExecution  ErrorClass = "execution"
	ClassRecovery   ErrorClass = "recovery"
)

// ErrorKind subtypes execution failures.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindDiskFull         ErrorKind = "disk_full"
	KindTargetExists     ErrorKind = "target_exists"
	KindFileLocked       ErrorKind = "file_locked"
	KindUnknown          ErrorKind = "unknown"
)

// Sentinels matched with errors.Is against any *Error of the same class.
var (
	ErrPlanning   = errors.New("planning error")
	ErrValidation = errors.New("validation error")
	ErrExecution  = errors.New("execution error")
	ErrRecovery   = errors.New("recovery error")

	// ErrMigrationInProgress rejects a second migration of a leased artist.
	ErrMigrationInProgress = lease.ErrHeld
)

// Error is a migration failure with its structured context.
type Error struct {
	Class    ErrorClass    `json:"class"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	ArtistID string        `json:"artist_id,omitempty"`
	AlbumID  string        `json:"album_id,omitempty"`
	Path     string        `json:"path,omitempty"`
	Errno    syscall.Errno `json:"errno,omitempty"`
	Message  string        `json:"message"`
	Issues   []Issue       `json:"issues,omitempty"`
	Err      error         `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Class))
	b.WriteString(" error")
	if e.Kind != "" {
		fmt.Fprintf(&b, " (%s)", e.Kind)
	}
	if e.ArtistID != "" {
		fmt.Fprintf(&b, ": artist %q", e.ArtistID)
	}
	if e.AlbumID != "" {
		fmt.Fprintf(&b, ": album %q", e.AlbumID)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if sentinel := classSentinel(e.Class); sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func classSentinel(class ErrorClass) error {
	switch class {
	case ClassPlanning:
		return ErrPlanning
	case ClassValidation:
		return ErrValidation
	case ClassExecution:
		return ErrExecution
	case ClassRecovery:
		return ErrRecovery
	default:
		return nil
	}
}

// AsError extracts the structured error from err.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ClassifyError maps an execution failure onto an ErrorKind and reports the
// OS error number when there is one.
func ClassifyError(err error) (ErrorKind, syscall.Errno) {
	if err == nil {
		return "", 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			return KindPermissionDenied, errno
		case syscall.ENOSPC, syscall.EDQUOT:
			return KindDiskFull, errno
		case syscall.EEXIST, syscall.ENOTEMPTY:
			return KindTargetExists, errno
		case syscall.EBUSY, syscall.ETXTBSY:
			return KindFileLocked, errno
		default:
			return KindUnknown, errno
		}
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied, 0
	case errors.Is(err, fs.ErrExist):
		return KindTargetExists, 0
	default:
		return KindUnknown, 0
	}
}
