//go:build windows

package pdf

import (
	"os/exec"
	"syscall"
)

// prepareCommand 在 Windows 上运行 pdftoppm 时不弹出控制台窗口
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
