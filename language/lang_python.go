package language

func newPython() *adapter {
	return &adapter{
		lang:   Python,
		source: "main.py",
		run: Command{
			Args: []string{"python3", "-B", "main.py"},
			Env:  append([]string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8"}, defaultEnv...),
		},
		rules: []rule{
			{StageRun, "SyntaxError", CategoryCompileError, withoutTraceback},
			{StageRun, "IndentationError", CategoryCompileError, withoutTraceback},
			{StageRun, "TabError", CategoryCompileError, withoutTraceback},
			{StageRun, "MemoryError", CategoryMemoryLimitExceeded, nil},
		},
		hints: []string{"Error:", "Exception:"},
	}
}
