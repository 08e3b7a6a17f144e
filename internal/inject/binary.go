package inject

import "os/exec"

// hasBinary reports whether name is resolvable on PATH.
func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
