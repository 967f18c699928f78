//go:build windows

package hook

import "os/exec"

func configureProcessGroup(*exec.Cmd) {}
