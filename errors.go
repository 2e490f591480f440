package vfs

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrParse        = errors.New("malformed address")
	ErrResolve      = errors.New("name resolution failed")
	ErrEndpointInit = errors.New("endpoint init failed")
	ErrConnect      = errors.New("connect failed")
	ErrNotConnected = errors.New("not connected")
	ErrNotSeekable  = errors.New("not seekable")
	ErrNoSuchDevice = errors.New("no such device")

	ErrNotExist     = errors.New("file does not exist")
	ErrExist        = errors.New("file already exists")
	ErrInvalidName  = errors.New("invalid name")
	ErrNotDir       = errors.New("not a directory")
	ErrBadFd        = errors.New("bad file descriptor")
	ErrBusy         = errors.New("filesystem busy")
	ErrNotSupported = errors.New("operation not supported")
)

// Error is a failed operation on a named file, tagged with its kind.
// Err is the collaborator cause, if any.
type Error struct {
	Op   string
	Name string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Name != "" {
		msg += " " + e.Name
	}
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewError(op, name string, kind, err error) error {
	return &Error{Op: op, Name: name, Kind: kind, Err: err}
}

// KindOf returns the kind of err, or nil if it carries none.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	return nil
}

// combineErrors joins two errors, keeping nil when both are nil.
func combineErrors(err, err2 error) error {
	if err == nil {
		return err2
	}
	if err2 == nil {
		return err
	}
	return errors.Join(err, err2)
}
