package env

import (
	"os"
	"path/filepath"
	"testing"
)

const testMountConf = `
mount:
  - type: bind
    source: /usr
    target: /usr
    readonly: true
  - type: tmpfs
    target: /tmp
    data: size=16m,nr_inodes=4k
workDir: /box
hostName: judge
proc: true
`

func TestReadMountConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "mount.yaml")
	if err := os.WriteFile(p, []byte(testMountConf), 0o644); err != nil {
		t.Fatal(err)
	}
	mc, err := readMountConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if mc.WorkDir != "/box" || mc.HostName != "judge" || !mc.Proc {
		t.Fatalf("unexpected config %+v", mc)
	}
	b, err := parseMountConfig(mc)
	if err != nil {
		t.Fatal(err)
	}
	// bind + tmpfs + proc
	if len(b.Mounts) != 3 {
		t.Fatalf("mounts = %d, want 3", len(b.Mounts))
	}
	if b.Mounts[0].Target != "usr" {
		t.Fatalf("target = %q, want relative path", b.Mounts[0].Target)
	}
}

func TestParseMountConfigInvalidType(t *testing.T) {
	_, err := parseMountConfig(&Mounts{Mount: []Mount{{Type: "overlay", Target: "/x"}}})
	if err == nil {
		t.Fatal("expected error for unknown mount type")
	}
}

func TestReadMountConfigMissing(t *testing.T) {
	_, err := readMountConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestDefaultMountHasNoWritableRoot(t *testing.T) {
	b := getDefaultMount("size=8m")
	for _, m := range b.Mounts {
		if m.Target == "" || m.Target[0] == '/' {
			t.Fatalf("mount target %q must be relative to the new root", m.Target)
		}
	}
}

func TestCredGen(t *testing.T) {
	g := newCredGen(10000)
	a, b := g.Get(), g.Get()
	if a.Uid == b.Uid || a.Uid != 10001 || a.Gid != a.Uid {
		t.Fatalf("credentials %+v %+v", a, b)
	}
}

func TestKernelVersion(t *testing.T) {
	major, _ := kernelVersion()
	if major < 3 {
		t.Fatalf("kernel major = %d", major)
	}
}
