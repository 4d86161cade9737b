//go:build !windows

package runner

import (
	"errors"
	"os/exec"
)

func setCmdLine(*exec.Cmd, string) error {
	return errors.ErrUnsupported
}
