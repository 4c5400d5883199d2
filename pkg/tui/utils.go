package tui

import (
	"math/big"
	"os/exec"
	"runtime"
	"strings"

	"bscwallet/pkg/utils"
)

func (m model) displayValue(f *big.Float, decimals int) string {
	if m.privacyMode {
		return "****"
	}
	return utils.FormatBigFloat(f, decimals)
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	return addr
}

// maskKey hides a private key unless keys are revealed and privacy mode is off.
func (m model) maskKey(key string) string {
	if m.privacyMode || !m.revealKeys {
		if len(key) > 6 {
			key = key[:6]
		}
		return key + strings.Repeat("•", 12)
	}
	return key
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
