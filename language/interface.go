package language

import "github.com/kaiju-coding/codejudge/envexec"

// Stage is the phase of an execution
type Stage int

// Stages of an execution
const (
	StageCompile Stage = iota
	StageRun
)

func (s Stage) String() string {
	if s == StageCompile {
		return "compile"
	}
	return "run"
}

// Command defines one sandboxed command of an adapter
type Command struct {
	Args []string
	Env  []string
	// ProcLimit overrides the default process limit when not zero
	ProcLimit uint64
}

// Outcome is the raw result of a failed stage handed to ClassifyError
type Outcome struct {
	Stage      Stage
	Status     envexec.Status
	ExitStatus int
	Stdout     []byte
	Stderr     []byte
}

// Category is the structured meaning of a failure
type Category int

// Failure categories
const (
	CategoryRuntimeError Category = iota
	CategoryCompileError
	CategoryMemoryLimitExceeded
)

var categoryToString = []string{
	"runtime error",
	"compile error",
	"memory limit exceeded",
}

func (c Category) String() string {
	i := int(c)
	if i < 0 || i >= len(categoryToString) {
		return categoryToString[0]
	}
	return categoryToString[i]
}

// Classification is the adapter's interpretation of a failure
type Classification struct {
	Category Category
	Message  string
}

// Adapter describes compiling and running a snippet of one language.
// Compile returns nil for interpreted languages.
type Adapter interface {
	Language() Language
	SourceFile() string
	Compile() *Command
	Run() Command
	ClassifyError(Outcome) Classification
}
