package config

import "flag"

// Flags is the small set of command-line overrides SPEC_FULL.md §10 keeps
// alongside the TOML file, following the teacher's own flag-based
// convention (internal/config/config.go previously did all configuration
// this way; now it only covers what a TOML file can't: which file to load,
// whether to turn on verbose logging for this run, and whether to print the
// version and exit).
type Flags struct {
	ConfigPath string
	Debug      bool
	Version    bool
}

// ParseFlags parses os.Args using the standard flag package, matching the
// teacher's Load() in spirit even though most of its former flags moved
// into the TOML file.
func ParseFlags() Flags {
	configPath := flag.String("config", "", "Path to config.toml (default: platform config directory)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	return Flags{
		ConfigPath: *configPath,
		Debug:      *debug,
		Version:    *version,
	}
}
