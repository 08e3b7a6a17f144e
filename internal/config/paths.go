package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfigPath mirrors original_source's DaemonConfig::default_config_path:
// os.UserConfigDir() already resolves to %AppData%, ~/Library/Application
// Support, or $XDG_CONFIG_HOME/$HOME/.config per platform, so only the
// product-specific subdirectory name differs across the three branches.
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = "Swictation"
	case "darwin":
		dir = "com.swictation.daemon"
	default:
		dir = "swictation"
	}
	return filepath.Join(base, dir, "config.toml"), nil
}

// defaultSocketPath returns the platform-native address for a named
// stream-socket endpoint: a Windows named pipe or a POSIX socket file under
// the OS temp directory, following the same runtime.GOOS branch the
// teacher's defaultGRPCAddress used for its own single-purpose pipe.
func defaultSocketPath(name string) string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\` + name
	}
	return filepath.Join(os.TempDir(), name+".sock")
}
