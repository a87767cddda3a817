//go:build !windows

package pdf

import "os/exec"

// prepareCommand 非 Windows 平台无需额外设置
func prepareCommand(cmd *exec.Cmd) {}
