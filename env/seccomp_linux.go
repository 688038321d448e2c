//go:build seccomp

package env

import (
	"fmt"
	"os"
	"syscall"

	"github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-ucfg/yaml"
	"golang.org/x/net/bpf"
)

// readSeccompConf compiles the yaml policy into a BPF program,
// a missing file disables the filter
func readSeccompConf(name string) ([]syscall.SockFilter, error) {
	conf, err := yaml.NewConfigWithFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var policy seccomp.Policy
	if err := conf.Unpack(&policy); err != nil {
		return nil, fmt.Errorf("seccomp: unpack %s: %w", name, err)
	}
	inst, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble policy: %w", err)
	}
	rawInst, err := bpf.Assemble(inst)
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble bpf: %w", err)
	}
	return toSockFilter(rawInst), nil
}

func toSockFilter(raw []bpf.RawInstruction) []syscall.SockFilter {
	filter := make([]syscall.SockFilter, 0, len(raw))
	for _, instruction := range raw {
		filter = append(filter, syscall.SockFilter{
			Code: instruction.Op,
			Jt:   instruction.Jt,
			Jf:   instruction.Jf,
			K:    instruction.K,
		})
	}
	return filter
}
