//go:build windows

package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindRuntime locates the capture tool binary: PATH first, then the standard
// install directories and a bin/ directory next to this executable.
func FindRuntime(runtime string) (string, error) {
	exe := fmt.Sprintf("%s.exe", runtime)

	if binPath, err := exec.LookPath(runtime); err == nil {
		return binPath, nil
	}

	var lookup []string
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
		if dir := os.Getenv(env); dir != "" {
			lookup = append(lookup, filepath.Join(dir, "sigrok", "sigrok-cli"))
		}
	}
	if exePath, err := os.Executable(); err == nil {
		lookup = append(lookup, filepath.Join(filepath.Dir(exePath), "bin"))
	}

	for _, dir := range lookup {
		binPath := filepath.Join(dir, exe)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	return "", fmt.Errorf("failed to find binary '%s'", runtime)
}
