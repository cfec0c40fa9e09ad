package logx

import "strings"

type Config struct {
	Level   string
	Console bool
	// Format selects the console encoding: "pretty" (default) or "json".
	Format string
	File   FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultFilePath = "./cadence.log"

func (c Config) jsonConsole() bool {
	return strings.EqualFold(strings.TrimSpace(c.Format), "json")
}

func (c Config) filePath() string {
	if p := strings.TrimSpace(c.File.Path); p != "" {
		return p
	}
	return defaultFilePath
}

// ValidFormat reports whether s is an accepted console format.
func ValidFormat(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pretty", "json":
		return true
	}
	return false
}
