package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindUnauthorized
	KindInvalidTransition
	KindSerialization
	KindGateway
	KindEmptyCart
)

var kindNames = map[Kind]string{
	KindInternal:          "internal",
	KindValidation:        "validation",
	KindNotFound:          "not_found",
	KindInsufficientStock: "insufficient_stock",
	KindUnauthorized:      "unauthorized",
	KindInvalidTransition: "invalid_transition",
	KindSerialization:     "serialization",
	KindGateway:           "gateway",
	KindEmptyCart:         "empty_cart",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is the error value returned by services and repositories.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrInternal          = &Error{Kind: KindInternal}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrSerialization     = &Error{Kind: KindSerialization}
	ErrGateway           = &Error{Kind: KindGateway}
	ErrEmptyCart         = &Error{Kind: KindEmptyCart}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// E builds an error of the given kind.
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an error of the given kind around err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an error of the given kind with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Message returns the message a caller may show to a user.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}

	return err.Error()
}

// IsPermanent reports whether retrying the failed operation cannot succeed.
func IsPermanent(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindSerialization, KindInvalidTransition, KindUnauthorized:
		return true
	default:
		return false
	}
}
