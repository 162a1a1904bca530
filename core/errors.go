package core

// Evaluation errors are user errors: the directive that hits one
// reports it to its connection and completes.  Nothing here should
// ever stop the scheduler.

import (
	"errors"
	"strconv"
)

var (
	// ErrQueueOverflow is returned by ByteQueue.Push when the queue
	// would exceed its maximum size.  The producer should back
	// off.
	ErrQueueOverflow = errors.New("queue overflow")

	// DivisionByZero occurs when evaluating x/0 or x%0.
	DivisionByZero = errors.New("division by zero")

	// ErrNotRunning is returned by Scheduler methods that need a
	// connection that the scheduler doesn't know.
	ErrNotRunning = errors.New("connection not attached")
)

// UndefinedIdentifier occurs when a name resolves to nothing.
type UndefinedIdentifier struct {
	Name string
}

func (e *UndefinedIdentifier) Error() string {
	return `undefined identifier "` + e.Name + `"`
}

// TypeMismatch occurs when an operator gets operands of the wrong
// kinds.
type TypeMismatch struct {
	Op          string
	Left, Right Kind
}

func (e *TypeMismatch) Error() string {
	return "type mismatch for " + e.Op + ": " + e.Left.String() + " and " + e.Right.String()
}

// IndexOutOfRange occurs for list indexing outside the list.
type IndexOutOfRange struct {
	Index, Len int
}

func (e *IndexOutOfRange) Error() string {
	return "index " + strconv.Itoa(e.Index) + " out of range [0," + strconv.Itoa(e.Len) + ")"
}

// InvalidModifier occurs when an assignment modifier can't be used
// (bad argument, non-numeric target, conflicting modifiers).
type InvalidModifier struct {
	Modifier string
	Reason   string
}

func (e *InvalidModifier) Error() string {
	return `invalid modifier "` + e.Modifier + `": ` + e.Reason
}

// AmbiguousName occurs when a slot is reachable through more than one
// inheritance path.
type AmbiguousName struct {
	Name  string
	Paths []string
}

func (e *AmbiguousName) Error() string {
	s := `ambiguous name "` + e.Name + `" via`
	for _, p := range e.Paths {
		s += " " + p
	}
	return s
}

// VariableBusy occurs when deleting a variable that still has
// assignments in progress.
type VariableBusy struct {
	Name    string
	Assigns int
}

func (e *VariableBusy) Error() string {
	return `variable "` + e.Name + `" has ` + strconv.Itoa(e.Assigns) + " pending assignments"
}

// UnknownFunction occurs when calling an undefined function.
type UnknownFunction struct {
	Name string
}

func (e *UnknownFunction) Error() string {
	return `unknown function "` + e.Name + `"`
}

// ArityMismatch occurs when a call has the wrong number of
// arguments.
type ArityMismatch struct {
	Name      string
	Want, Got int
}

func (e *ArityMismatch) Error() string {
	return e.Name + ": want " + strconv.Itoa(e.Want) + " arguments, got " + strconv.Itoa(e.Got)
}

// DirectiveError attributes an error to the directive (and its tag)
// that produced it.
type DirectiveError struct {
	Tag       string
	Directive string
	Err       error
}

func (e *DirectiveError) Error() string {
	if e.Tag == "" {
		return e.Directive + ": " + e.Err.Error()
	}
	return e.Tag + ": " + e.Directive + ": " + e.Err.Error()
}

func (e *DirectiveError) Unwrap() error {
	return e.Err
}
