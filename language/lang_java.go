package language

func newJava() *adapter {
	return &adapter{
		lang:   Java,
		source: "Main.java",
		compile: &Command{
			Args:      []string{"javac", "-encoding", "UTF-8", "-J-Xss64m", "-d", ".", "Main.java"},
			Env:       defaultEnv,
			ProcLimit: 64,
		},
		run: Command{
			Args:      []string{"java", "-cp", ".", "-XX:+UseSerialGC", "-XX:TieredStopAtLevel=1", "Main"},
			Env:       defaultEnv,
			ProcLimit: 64,
		},
		rules: []rule{
			{StageRun, "java.lang.OutOfMemoryError", CategoryMemoryLimitExceeded, nil},
		},
		hints: []string{"Exception in thread"},
	}
}
