// pkg/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"
)

type Code string

// Validation: rejected before any state change
const (
	CodeInvalidChain       Code = "INVALID_CHAIN"
	CodeInvalidAddress     Code = "INVALID_ADDRESS"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeUnsupportedToken   Code = "UNSUPPORTED_TOKEN"
	CodeInvalidSecret      Code = "INVALID_SECRET"
	CodeInvalidIntentToken Code = "INVALID_INTENT_TOKEN"
	CodeNoWallet           Code = "NO_WALLET"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeRateLimited        Code = "RATE_LIMITED"
)

// Wallet store preconditions
const (
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeNotFound      Code = "NOT_FOUND"
)

// Key vault
const (
	CodeIntegrity Code = "INTEGRITY_ERROR"
)

// External collaborators
const (
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeSchemaMismatch      Code = "SCHEMA_MISMATCH"
	CodeExecutionFailed     Code = "EXECUTION_FAILED"
)

// Confirmation protocol
const (
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeAlreadyProcessing   Code = "ALREADY_PROCESSING"
	CodeAlreadyProcessed    Code = "ALREADY_PROCESSED"
	CodeExpired             Code = "EXPIRED"
)

const CodeInternal Code = "INTERNAL"

type Kind string

const (
	KindValidation   Kind = "validation"
	KindPrecondition Kind = "precondition"
	KindIntegrity    Kind = "integrity"
	KindUpstream     Kind = "upstream"
	KindExecution    Kind = "execution"
	KindProtocol     Kind = "protocol"
	KindInternal     Kind = "internal"
)

// Kind groups codes the way callers react to them.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidChain, CodeInvalidAddress, CodeInvalidAmount, CodeUnsupportedToken,
		CodeInvalidSecret, CodeInvalidIntentToken, CodeNoWallet, CodeInvalidRequest, CodeRateLimited:
		return KindValidation
	case CodeAlreadyExists, CodeNotFound:
		return KindPrecondition
	case CodeIntegrity:
		return KindIntegrity
	case CodeUpstreamUnavailable, CodeSchemaMismatch:
		return KindUpstream
	case CodeExecutionFailed:
		return KindExecution
	case CodeInsufficientBalance, CodeAlreadyProcessing, CodeAlreadyProcessed, CodeExpired:
		return KindProtocol
	default:
		return KindInternal
	}
}

type AppError struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Op, msg)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a coded error with no underlying cause.
func New(code Code, op, message string) error {
	return &AppError{Code: code, Op: op, Message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, op, format string, args ...interface{}) error {
	return &AppError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. A nil err stays nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Op: op, Err: err}
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost AppError, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the user-facing text of err without the op prefix.
func Message(err error) string {
	appErr, ok := As(err)
	if !ok {
		return err.Error()
	}
	if appErr.Message != "" {
		return appErr.Message
	}
	if appErr.Err != nil {
		return appErr.Err.Error()
	}
	return string(appErr.Code)
}
