package errcode

// Code is a stable, surface-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidNumber Code = "invalid_number"
	ReadOnly      Code = "read_only"
	AttrInvalid   Code = "attr_invalid"
	SurfaceExists Code = "surface_exists"

	UnknownLine Code = "unknown_line"
	LineInUse   Code = "line_in_use"
	IRQInUse    Code = "irq_in_use"
	BadTrigger  Code = "bad_trigger"

	NotRunning     Code = "not_running"
	AlreadyRunning Code = "already_running"
	Timeout        Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
