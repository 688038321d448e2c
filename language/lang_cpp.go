package language

func newCPP() *adapter {
	return &adapter{
		lang:   CPP,
		source: "main.cpp",
		compile: &Command{
			Args:      []string{"g++", "-O2", "-std=c++17", "-pipe", "-o", "main", "main.cpp"},
			Env:       defaultEnv,
			ProcLimit: 16,
		},
		run: Command{
			Args: []string{"./main"},
			Env:  defaultEnv,
		},
		rules: []rule{
			{StageRun, "std::bad_alloc", CategoryMemoryLimitExceeded, nil},
		},
		hints: []string{"terminate called", "what():"},
	}
}
