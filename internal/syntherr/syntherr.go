// Package syntherr defines the closed error-kind catalog used by the parser
// and the length computer's CanLoop (the lexer reports its own
// lexer.Error, which the parser converts). The top-level synth
// package re-exports these as synth.Kind/synth.Error so callers never
// import this package directly; it exists on its own so that internal/parser
// (which returns these errors) and internal/synth (which defines the public
// Compile/Render API that calls the parser) don't import each other.
package syntherr

import "fmt"

// Kind is one of the specification's closed error codes.
type Kind int

const (
	KindOK Kind = iota
	KindBadParam
	KindMem
	KindOpenFile
	KindInvalidToken
	KindEOF
	KindEOS
	KindUnexpectedToken
	KindValueRange
	KindEmptySequence
	KindCompassOverflow
	KindBadLoopStart
	KindBadLoopEnd
	KindBadLoopPoint
	KindInvalidIndex
	KindComplexLoopPoint
	KindNotLoopable
	KindFunctionNotImplemented
)

var kindNames = map[Kind]string{
	KindOK:                     "OK",
	KindBadParam:                "BAD_PARAM",
	KindMem:                     "MEM",
	KindOpenFile:                "OPEN_FILE",
	KindInvalidToken:            "INVALID_TOKEN",
	KindEOF:                     "EOF",
	KindEOS:                     "EOS",
	KindUnexpectedToken:         "UNEXPECTED_TOKEN",
	KindValueRange:              "VALUE_RANGE",
	KindEmptySequence:           "EMPTY_SEQUENCE",
	KindCompassOverflow:         "COMPASS_OVERFLOW",
	KindBadLoopStart:            "BAD_LOOP_START",
	KindBadLoopEnd:              "BAD_LOOP_END",
	KindBadLoopPoint:            "BAD_LOOP_POINT",
	KindInvalidIndex:            "INVALID_INDEX",
	KindComplexLoopPoint:        "COMPLEX_LOOPPOINT",
	KindNotLoopable:             "NOT_LOOPABLE",
	KindFunctionNotImplemented:  "FUNCTION_NOT_IMPLEMENTED",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN_KIND"
}

// Error is the error type every compiler-facing operation returns.
// Expected and MaxValue are populated only for the kinds that use them
// (UNEXPECTED_TOKEN and VALUE_RANGE respectively); LineContext is the
// pre-formatted lexer line excerpt, set whenever a source position is
// known.
type Error struct {
	Kind        Kind
	Expected    string
	MaxValue    int
	LineContext string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Kind == KindUnexpectedToken && e.Expected != "":
		msg = fmt.Sprintf("%s: expected %s", msg, e.Expected)
	case e.Kind == KindValueRange && e.MaxValue != 0:
		msg = fmt.Sprintf("%s: max value %d", msg, e.MaxValue)
	}
	if e.LineContext != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.LineContext)
	}
	return msg
}
