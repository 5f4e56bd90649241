// Package errs defines the error kinds returned by product transactions.
//
// Every failure carries one of the sentinel kinds below so callers can match
// it with errors.Is. The rendered message is the JSON payload the client
// receives from the peer.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Input errors.
var (
	// ErrArityMismatch is returned when an operation receives the wrong number of arguments.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("missing field")

	// ErrDecode is returned when stored or supplied bytes are not well-formed JSON.
	ErrDecode = errors.New("decode error")

	// ErrUnknownFunction is returned when no transaction has the requested name.
	ErrUnknownFunction = errors.New("unknown function")
)

// State errors.
var (
	// ErrAlreadyExists is returned when creating a record whose key is populated.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when a record key is absent or empty.
	ErrNotFound = errors.New("not found")

	// ErrUnknownReference is returned when a foreign key does not resolve.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrConflict is returned when the record state forbids the operation.
	ErrConflict = errors.New("conflict")

	// ErrNotPartOfContract is returned when a product is not listed in a contract.
	ErrNotPartOfContract = errors.New("not part of contract")
)

// Identity errors.
var (
	// ErrPermissionDenied is returned when the caller lacks the required role.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMalformedIdentity is returned when a caller id descriptor cannot be parsed.
	ErrMalformedIdentity = errors.New("malformed identity")
)

// CodeContractCompleted is the machine code for deleting against a completed contract.
const CodeContractCompleted = "C-10007"

// Error is a structured transaction failure.
type Error struct {
	Kind  error
	Msg   string
	Code  string
	Field string
	Key   string
}

type payload struct {
	Success   bool   `json:"success"`
	ErrorKind string `json:"errorKind"`
	ErrorCode string `json:"errorCode,omitempty"`
	ErrorMsg  string `json:"errorMsg"`
	Field     string `json:"field,omitempty"`
	Key       string `json:"key,omitempty"`
}

// Error renders the JSON payload.
func (e *Error) Error() string {
	kind := ""
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	b, err := json.Marshal(payload{
		ErrorKind: kind,
		ErrorCode: e.Code,
		ErrorMsg:  e.Msg,
		Field:     e.Field,
		Key:       e.Key,
	})
	if err != nil {
		return e.Msg
	}
	return string(b)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New returns an Error of the given kind.
func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Arity reports a wrong argument count.
func Arity(want, got int) *Error {
	return New(ErrArityMismatch, "Incorrect number of arguments. Expecting %d, got %d.", want, got)
}

// Missing reports an empty required field.
func Missing(field string) *Error {
	e := New(ErrMissingField, "Argument %s must be a non-empty string", field)
	e.Field = field
	return e
}

// NotFound reports an absent record.
func NotFound(what, key string) *Error {
	e := New(ErrNotFound, "%s does not exist: %s", what, key)
	e.Key = key
	return e
}

// Decode reports malformed JSON stored under key.
func Decode(key string, cause error) *Error {
	e := New(ErrDecode, "Failed to decode JSON of: %s (%v)", key, cause)
	e.Key = key
	return e
}

// PermissionDenied reports an unauthorized caller.
func PermissionDenied() *Error {
	return New(ErrPermissionDenied, "You don't have permission to do this")
}

// Kind returns the sentinel kind of err, or nil if err carries none.
func Kind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
