package util

import (
	"os/exec"
	"runtime"
)

// OpenFile 用系统默认程序打开文件或 URL
// 支持 Windows 7/10/11, macOS, Linux
func OpenFile(target string) error {
	return openCommand(runtime.GOOS, target).Start()
}

func openCommand(goos, target string) *exec.Cmd {
	switch goos {
	case "windows":
		// rundll32 调用 url.dll 在 Windows 7 上比 cmd /c start 稳定，且不会转义路径中的 &
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	case "darwin":
		return exec.Command("open", target)
	default:
		return exec.Command("xdg-open", target)
	}
}

// OpenFileWithFallback 带降级方案的打开方式
func OpenFileWithFallback(target string) error {
	err := OpenFile(target)
	if err == nil {
		return nil
	}

	switch runtime.GOOS {
	case "windows":
		return exec.Command("explorer", target).Start()
	case "linux":
		for _, opener := range []string{"gio", "gnome-open", "kde-open", "sensible-browser"} {
			args := []string{target}
			if opener == "gio" {
				args = []string{"open", target}
			}
			if err := exec.Command(opener, args...).Start(); err == nil {
				return nil
			}
		}
	}

	return err
}
