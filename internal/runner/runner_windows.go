package runner

import (
	"os/exec"
	"syscall"
)

func setCmdLine(cmd *exec.Cmd, cmdLine string) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: cmdLine}
	return nil
}
