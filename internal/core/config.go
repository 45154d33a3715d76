package core

import "fmt"

// Config is the root runbook document. Both lists are required but may be empty.
type Config struct {
	Variables []Variable `mapstructure:"variables"`
	Steps     []Step     `mapstructure:"steps"`
}

// SourceKind tells where a variable's value comes from.
type SourceKind int

const (
	// SourceUnset means neither value nor valueFrom was given; the variable is skipped.
	SourceUnset SourceKind = iota
	// SourceLiteral means the value is used as written.
	SourceLiteral
	// SourceCommand means the value is the stdout of a shell command.
	SourceCommand
)

func (k SourceKind) String() string {
	switch k {
	case SourceLiteral:
		return "literal"
	case SourceCommand:
		return "command"
	default:
		return "unset"
	}
}

// Variable is a named value made available to step commands as ${name}.
type Variable struct {
	Name      string  `mapstructure:"name"`
	Value     *string `mapstructure:"value"`
	ValueFrom *string `mapstructure:"valueFrom"`
}

// Source returns the variable's value source and its literal value or command.
func (v Variable) Source() (SourceKind, string) {
	switch {
	case v.Value != nil:
		return SourceLiteral, *v.Value
	case v.ValueFrom != nil:
		return SourceCommand, *v.ValueFrom
	default:
		return SourceUnset, ""
	}
}

// Literal builds a variable with a fixed value.
func Literal(name, value string) Variable {
	return Variable{Name: name, Value: &value}
}

// Computed builds a variable whose value is the output of command.
func Computed(name, command string) Variable {
	return Variable{Name: name, ValueFrom: &command}
}

// Step is one shell command template. Consecutive parallel steps run together.
type Step struct {
	Bash        string `mapstructure:"bash"`
	DisplayName string `mapstructure:"displayName"`
	Parallel    bool   `mapstructure:"parallel"`
}

// Label returns the display name, or "Step N" using the 1-based position.
func (s Step) Label(index int) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return fmt.Sprintf("Step %d", index+1)
}
