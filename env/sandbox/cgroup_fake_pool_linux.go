package sandbox

var _ CgroupPool = &FakeCgroupPool{}

// FakeCgroupPool implements cgroup pool but not actually do pool,
// every process gets a fresh cgroup so peak memory is never inherited
type FakeCgroupPool struct {
	builder CgroupBuilder
}

// NewFakeCgroupPool creates FakeCgroupPool
func NewFakeCgroupPool(builder CgroupBuilder) CgroupPool {
	return &FakeCgroupPool{builder: builder}
}

// Get gets new cgroup
func (f *FakeCgroupPool) Get() (Cgroup, error) {
	cg, err := f.builder.Random("")
	if err != nil {
		return nil, err
	}
	return &wCgroup{cg: cg}, nil
}

// Put destroy the cgroup
func (f *FakeCgroupPool) Put(c Cgroup) {
	c.Destroy()
}
