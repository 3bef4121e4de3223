package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"kestrel/internal/block"
	"kestrel/internal/exfat"
	"kestrel/internal/kernerr"
	"kestrel/internal/klog"
	"kestrel/internal/sched"
	"kestrel/internal/vfs"
)

func registerBuiltins(sh *Shell) {
	sh.Register("help", cmdHelp)
	sh.Register("echo", cmdEcho)
	sh.Register("info", cmdInfo)
	sh.Register("clear", cmdClear)
	sh.Register("ps", cmdPs)
	sh.Register("mem", cmdMem)
	sh.Register("free", cmdFree)
	sh.Register("used", cmdUsed)
	sh.Register("mkram", cmdMkram)
	sh.Register("mount", cmdMount)
	sh.Register("mounts", cmdMounts)
	sh.Register("ls", cmdLs)
	sh.Register("cd", cmdCd)
	sh.Register("pwd", cmdPwd)
	sh.Register("mkexfat", cmdMkexfat)
	sh.Register("mkfs", cmdMkfs)
	sh.Register("cat", cmdCat)
	sh.Register("stat", cmdStat)
	sh.Register("touch", cmdTouch)
	sh.Register("write", cmdWrite)
	sh.Register("rm", cmdRm)
	sh.Register("fill", cmdFill)
}

func cmdHelp(sh *Shell, args []string) error {
	names := sh.CommandNames()
	sh.println(strings.Join(names, " "))
	return nil
}

func cmdEcho(sh *Shell, args []string) error {
	sh.println(strings.Join(args, " "))
	return nil
}

func cmdInfo(sh *Shell, args []string) error {
	sh.println(sh.BootInfo)
	for _, line := range klog.History() {
		sh.println(line)
	}
	return nil
}

func cmdClear(sh *Shell, args []string) error {
	sh.Console.Write(strings.Repeat("\n", 40))
	return nil
}

func cmdPs(sh *Shell, args []string) error {
	var infos [sched.MaxThreads]sched.ThreadInfo
	n := sh.Sched.Enumerate(infos[:])
	for i := 0; i < n; i++ {
		sh.println(fmt.Sprintf("%d %s", infos[i].ID, infos[i].State))
	}
	return nil
}

func cmdMem(sh *Shell, args []string) error {
	sh.println(fmt.Sprintf("total physical: %s", humanize.Bytes(sh.PMM.TotalPhysicalBytes())))
	return nil
}

func cmdFree(sh *Shell, args []string) error {
	sh.println(fmt.Sprintf("free: %s", humanize.Bytes(sh.PMM.FreeBytes())))
	return nil
}

func cmdUsed(sh *Shell, args []string) error {
	used := sh.PMM.TotalUsableBytes() - sh.PMM.FreeBytes()
	sh.println(fmt.Sprintf("used: %s", humanize.Bytes(used)))
	return nil
}

func cmdMkram(sh *Shell, args []string) error {
	if len(args) < 2 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: mkram <name> <hex-bytes>")
	}
	name := args[0]
	size, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 64)
	if err != nil {
		return kernerr.New("shell", kernerr.InvalidArgument, "invalid hex size: "+args[1])
	}
	sectors := size / block.DefaultSectorSize
	if size%block.DefaultSectorSize != 0 {
		sectors++
	}
	block.NewRAMDisk(sh.Block, name, sectors)
	sh.println(fmt.Sprintf("created %s: %s", name, humanize.Bytes(sectors*block.DefaultSectorSize)))
	return nil
}

func cmdMount(sh *Shell, args []string) error {
	if len(args) < 2 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: mount <fs> <mnt> [dev]")
	}
	fsName, mountName := args[0], args[1]
	devName := ""
	if len(args) >= 3 {
		devName = args[2]
	}
	if err := sh.VFS.Mount(sh.Block, fsName, mountName, devName); err != nil {
		return err
	}
	sh.println(fmt.Sprintf("mounted %s as %s", fsName, mountName))
	return nil
}

func cmdMounts(sh *Shell, args []string) error {
	for _, m := range sh.VFS.Mounts() {
		sh.println(m.Name)
	}
	return nil
}

func cmdLs(sh *Shell, args []string) error {
	path := sh.Pwd()
	if len(args) > 0 {
		path = sh.resolvePath(args[0])
	}
	n, err := sh.VFS.Open(path)
	if err != nil {
		return err
	}
	for i := 0; ; i++ {
		name, ok, err := sh.VFS.Readdir(n, i)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		sh.println(name)
	}
	return nil
}

func cmdCd(sh *Shell, args []string) error {
	if len(args) < 1 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: cd <path>")
	}
	path := sh.resolvePath(args[0])
	mount, sub, err := vfs.SplitPath(path)
	if err != nil {
		return err
	}
	if sh.VFS.FindMount(mount) == nil {
		return kernerr.New("shell", kernerr.NotFound, "no such mount: "+mount)
	}
	sh.cwdMount = mount
	sh.cwdPath = sub
	return nil
}

func cmdPwd(sh *Shell, args []string) error {
	sh.println(sh.Pwd())
	return nil
}

func cmdMkexfat(sh *Shell, args []string) error {
	if len(args) < 1 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: mkexfat <dev> [label]")
	}
	return formatExfat(sh, args[0])
}

func cmdMkfs(sh *Shell, args []string) error {
	if len(args) < 2 || args[0] != "exfat" {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: mkfs exfat <dev> [label]")
	}
	return formatExfat(sh, args[1])
}

func formatExfat(sh *Shell, devName string) error {
	dev := sh.Block.Find(devName)
	if dev == nil {
		return kernerr.New("shell", kernerr.NotFound, "no such device: "+devName)
	}
	if err := exfat.Format(dev); err != nil {
		return err
	}
	sh.println("formatted " + devName)
	return nil
}

func cmdCat(sh *Shell, args []string) error {
	if len(args) < 1 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: cat <path>")
	}
	n, err := sh.VFS.Open(sh.resolvePath(args[0]))
	if err != nil {
		return err
	}
	st, err := sh.VFS.Stat(n)
	if err != nil {
		return err
	}
	buf := make([]byte, st.Size)
	if _, err := sh.VFS.Read(n, 0, buf); err != nil {
		return err
	}
	sh.println(string(buf))
	return nil
}

func cmdStat(sh *Shell, args []string) error {
	if len(args) < 1 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: stat <path>")
	}
	n, err := sh.VFS.Open(sh.resolvePath(args[0]))
	if err != nil {
		return err
	}
	st, err := sh.VFS.Stat(n)
	if err != nil {
		return err
	}
	kind := "file"
	if st.Kind == vfs.KindDir {
		kind = "dir"
	}
	sh.println(fmt.Sprintf("size %#x type %s", st.Size, kind))
	return nil
}

func cmdTouch(sh *Shell, args []string) error {
	if len(args) < 1 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: touch <path>")
	}
	_, err := sh.VFS.Create(sh.resolvePath(args[0]))
	return err
}

func cmdWrite(sh *Shell, args []string) error {
	if len(args) < 2 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: write <path> <text>")
	}
	path := sh.resolvePath(args[0])
	text := strings.Join(args[1:], " ")

	n, err := sh.VFS.Open(path)
	if err != nil {
		n, err = sh.VFS.Create(path)
		if err != nil {
			return err
		}
	}
	_, err = sh.VFS.Write(n, 0, []byte(text))
	return err
}

func cmdRm(sh *Shell, args []string) error {
	if len(args) < 1 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: rm <path>")
	}
	return sh.VFS.Unlink(sh.resolvePath(args[0]))
}

func cmdFill(sh *Shell, args []string) error {
	if len(args) < 2 {
		return kernerr.New("shell", kernerr.InvalidArgument, "usage: fill <path> <hex-size> [ch]")
	}
	path := sh.resolvePath(args[0])
	size, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 64)
	if err != nil {
		return kernerr.New("shell", kernerr.InvalidArgument, "invalid hex size: "+args[1])
	}
	ch := byte('a')
	if len(args) >= 3 && len(args[2]) > 0 {
		ch = args[2][0]
	}

	n, err := sh.VFS.Open(path)
	if err != nil {
		n, err = sh.VFS.Create(path)
		if err != nil {
			return err
		}
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = ch
	}
	_, err = sh.VFS.Write(n, 0, buf)
	return err
}
