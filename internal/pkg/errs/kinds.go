package errs

import (
	cr "github.com/cockroachdb/errors"
)

// Kind is the stable failure category handed to callers of the bus.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindContention     Kind = "contention"
	KindInfrastructure Kind = "infrastructure"
	KindConfiguration  Kind = "configuration"
)

var kindOrder = []Kind{
	KindValidation,
	KindConflict,
	KindContention,
	KindConfiguration,
	KindInfrastructure,
}

var kindMarkers = map[Kind]error{
	KindValidation:     cr.New("errs: kind validation"),
	KindConflict:       cr.New("errs: kind conflict"),
	KindContention:     cr.New("errs: kind contention"),
	KindInfrastructure: cr.New("errs: kind infrastructure"),
	KindConfiguration:  cr.New("errs: kind configuration"),
}

// CodedError is a sentinel carrying a stable code and a kind.
type CodedError struct {
	kind Kind
	code string
	msg  string
}

func (e *CodedError) Error() string { return e.msg }

func (e *CodedError) Kind() Kind { return e.kind }

func (e *CodedError) Code() string { return e.code }

// Define declares a package-level sentinel. Compare with errors.Is.
func Define(kind Kind, code, msg string) error {
	return &CodedError{kind: kind, code: code, msg: msg}
}

// MarkKind classifies an arbitrary error without changing its message.
func MarkKind(err error, kind Kind) error {
	marker, ok := kindMarkers[kind]
	if !ok || err == nil {
		return err
	}
	return cr.Mark(err, marker)
}

// KindOf returns the kind of err. Unclassified errors are infrastructure failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if cr.As(err, &coded) {
		return coded.kind
	}
	for _, k := range kindOrder {
		if cr.Is(err, kindMarkers[k]) {
			return k
		}
	}
	return KindInfrastructure
}

func CodeOf(err error) string {
	var coded *CodedError
	if cr.As(err, &coded) {
		return coded.code
	}
	switch KindOf(err) {
	case KindValidation:
		return "Validation"
	case KindConflict:
		return "Conflict"
	case KindContention:
		return "Contention"
	case KindConfiguration:
		return "Configuration"
	default:
		return "Infrastructure"
	}
}

// Retryable reports whether the same command may succeed when sent again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindContention, KindInfrastructure:
		return true
	default:
		return false
	}
}

// Failure is what a caller sees: a kind, a stable code and a readable reason.
type Failure struct {
	Kind   Kind
	Code   string
	Reason string
}

func Describe(err error) Failure {
	if err == nil {
		return Failure{}
	}
	reason := err.Error()
	var coded *CodedError
	if cr.As(err, &coded) {
		reason = coded.msg
	}
	return Failure{Kind: KindOf(err), Code: CodeOf(err), Reason: reason}
}
