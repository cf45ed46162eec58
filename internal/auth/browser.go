package auth

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser launches the system browser with the given URL. On platforms
// without a standalone browser launcher the caller falls back to printing the
// URL for manual navigation, so a failure here is never fatal to a flow.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	return nil
}
