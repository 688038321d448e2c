package language

func newRust() *adapter {
	return &adapter{
		lang:   Rust,
		source: "main.rs",
		compile: &Command{
			Args: []string{"rustc", "-O", "--edition", "2021", "-o", "main", "main.rs"},
			Env:  defaultEnv,
			// rustc spawns the linker and codegen threads
			ProcLimit: 64,
		},
		run: Command{
			Args: []string{"./main"},
			Env:  defaultEnv,
		},
		rules: []rule{
			{StageRun, "memory allocation of", CategoryMemoryLimitExceeded, nil},
		},
		hints: []string{"panicked at"},
	}
}
