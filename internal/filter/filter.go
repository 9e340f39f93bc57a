// Package filter selects log entries by CEL expressions over their metadata. It backs the --where flag of the CLI.
//
// The expression sees the following variables:
//
//	timestamp  double  commit timestamp of the transaction in milliseconds since the unix epoch
//	earliest   double  start timestamp of the oldest snapshot at commit time
//	length     int     length of the entry data in bytes
//	flags      int     transaction flags of the entry
//	last       bool    reports if the entry is the last entry of its transaction
//	sequence   int     sequence number of the file the entry starts in
//	offset     int     offset of the transaction header within that file
//	data       bytes   the entry data
//
// An example is `timestamp >= 1700000000000.0 && length > 1024`.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/backbone81/txnlog/internal/logfile"
)

var (
	ErrInvalidExpression = errors.New("invalid filter expression")
	ErrNotBoolean        = errors.New("the filter expression does not evaluate to a boolean")
)

// Filter is a compiled filter expression. The zero value and a Filter compiled from an empty expression match every
// entry.
//
// Instances of Filter are safe to use concurrently.
type Filter struct {
	program cel.Program
}

// Compile compiles the given expression. Returns ErrInvalidExpression when the expression does not parse, refers to
// unknown variables or does not produce a boolean.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return &Filter{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("timestamp", cel.DoubleType),
		cel.Variable("earliest", cel.DoubleType),
		cel.Variable("length", cel.IntType),
		cel.Variable("flags", cel.IntType),
		cel.Variable("last", cel.BoolType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("offset", cel.IntType),
		cel.Variable("data", cel.BytesType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating the filter environment: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q is of type %s", ErrInvalidExpression, expression, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}
	return &Filter{program: program}, nil
}

// Enabled reports if the filter was compiled from a non-empty expression.
func (f *Filter) Enabled() bool {
	return f != nil && f.program != nil
}

// Match evaluates the filter against the entry.
func (f *Filter) Match(entry logfile.Entry) (bool, error) {
	if !f.Enabled() {
		return true, nil
	}
	out, _, err := f.program.Eval(map[string]any{
		"timestamp": entry.Header.ActualTimestamp,
		"earliest":  entry.Header.EarliestTimestamp,
		"length":    int64(entry.Header.DataLength),
		"flags":     int64(entry.Header.Flags),
		"last":      entry.Header.Flags.IsLastEntry(),
		"sequence":  int64(entry.Position.Sequence), //nolint:gosec // Sequence numbers stay far below the int64 range.
		"offset":    entry.Position.Offset,
		"data":      entry.Data,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating the filter expression: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, ErrNotBoolean
	}
	return result, nil
}
