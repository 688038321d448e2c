package language

func newJavaScript() *adapter {
	return &adapter{
		lang:   JavaScript,
		source: "main.js",
		run: Command{
			Args: []string{"node", "--stack-size=65500", "main.js"},
			Env:  defaultEnv,
			// libuv thread pool and the v8 platform threads
			ProcLimit: 32,
		},
		rules: []rule{
			{StageRun, "SyntaxError:", CategoryCompileError, noFrameAfter("SyntaxError:", "main.js")},
			{StageRun, "JavaScript heap out of memory", CategoryMemoryLimitExceeded, nil},
		},
		hints: []string{"Error:"},
	}
}
