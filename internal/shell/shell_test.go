package shell_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/block"
	"kestrel/internal/exfat"
	"kestrel/internal/kheap"
	"kestrel/internal/multiboot"
	"kestrel/internal/pmm"
	"kestrel/internal/sched"
	"kestrel/internal/shell"
	"kestrel/internal/vfs"
	"kestrel/internal/vfs/devfs"
)

type recorder struct {
	lines []string
}

func (r *recorder) Write(s string) {
	r.lines = append(r.lines, s)
}

func (r *recorder) Joined() string {
	return strings.Join(r.lines, "")
}

func newTestShell(t *testing.T) (*shell.Shell, *recorder) {
	info := &multiboot.Info{
		LegacyRegions: []multiboot.MemoryRegion{{Base: 0x100000, Len: 0x1000000, Type: multiboot.RegionAvailable}},
	}
	frames := pmm.Init(info, false)
	heap := kheap.New(4096)
	reg := block.NewRegistry()
	v := vfs.New()
	v.RegisterDriver("devfs", devfs.Bind(reg))
	require.NoError(t, v.Mount(reg, "devfs", "dev", ""))
	v.RegisterDriver("exfat", exfat.Bind())

	sc := sched.New()
	rec := &recorder{}
	sh := shell.New(rec, reg, v, frames, heap, sc)
	return sh, rec
}

func TestHelpListsCommands(t *testing.T) {
	sh, rec := newTestShell(t)
	require.NoError(t, sh.Dispatch("help"))
	require.Contains(t, rec.Joined(), "echo")
}

func TestEchoPrintsArgs(t *testing.T) {
	sh, rec := newTestShell(t)
	require.NoError(t, sh.Dispatch("echo hello world"))
	require.Equal(t, "hello world\n", rec.Joined())
}

func TestUnknownCommandFails(t *testing.T) {
	sh, _ := newTestShell(t)
	require.Error(t, sh.Dispatch("bogus"))
}

func TestMkramMountLsFlow(t *testing.T) {
	sh, rec := newTestShell(t)
	require.NoError(t, sh.Dispatch("mkram ram0 0x2000"))
	require.NoError(t, sh.Dispatch("ls dev:/"))
	require.Contains(t, rec.Joined(), "ram0")
}

func TestExfatRoundTripThroughShell(t *testing.T) {
	sh, rec := newTestShell(t)
	require.NoError(t, sh.Dispatch("mkram ram0 0x400000"))
	require.NoError(t, sh.Dispatch("mkfs exfat ram0"))
	require.NoError(t, sh.Dispatch("mount exfat root ram0"))
	require.NoError(t, sh.Dispatch("touch /hello.txt"))
	require.NoError(t, sh.Dispatch("write /hello.txt Hello, world!"))
	rec.lines = nil
	require.NoError(t, sh.Dispatch("cat /hello.txt"))
	require.Equal(t, "Hello, world!\n", rec.Joined())
}

func TestCatMissingFileFails(t *testing.T) {
	sh, _ := newTestShell(t)
	require.NoError(t, sh.Dispatch("mkram ram0 0x400000"))
	require.NoError(t, sh.Dispatch("mkfs exfat ram0"))
	require.NoError(t, sh.Dispatch("mount exfat root ram0"))
	require.Error(t, sh.Dispatch("cat /missing"))
}

func TestWriteOnMissingDevNodeFails(t *testing.T) {
	sh, _ := newTestShell(t)
	require.Error(t, sh.Dispatch("write dev:/bogus hello"))
}

func TestMemFreeUsedCommandsRun(t *testing.T) {
	sh, _ := newTestShell(t)
	require.NoError(t, sh.Dispatch("mem"))
	require.NoError(t, sh.Dispatch("free"))
	require.NoError(t, sh.Dispatch("used"))
}
