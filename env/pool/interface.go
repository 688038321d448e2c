// Package pool adapts an environment builder to the worker environment pool.
package pool

import (
	"github.com/kaiju-coding/codejudge/envexec"
	"github.com/kaiju-coding/codejudge/worker"
)

// Environment defines envexec.Environment with destroy
type Environment interface {
	envexec.Environment
	Destroy() error
}

// EnvBuilder defines the abstract builder for sandbox environment
type EnvBuilder interface {
	Build() (Environment, error)
}

// pool never reuses an environment: a working directory belongs to exactly
// one request and is removed together with its environment
type pool struct {
	builder EnvBuilder
	onError func(error)
}

// NewPool returns a pool for EnvBuilder, onError receives destroy failures
func NewPool(builder EnvBuilder, onError func(error)) worker.EnvironmentPool {
	return &pool{
		builder: builder,
		onError: onError,
	}
}

func (p *pool) Get() (envexec.Environment, error) {
	return p.builder.Build()
}

func (p *pool) Put(env envexec.Environment) {
	e, ok := env.(Environment)
	if !ok {
		panic("invalid environment put")
	}
	if err := e.Destroy(); err != nil && p.onError != nil {
		p.onError(err)
	}
}
