package prolib

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
)

// ConfigEnv names the environment variable pointing at the configuration file
const ConfigEnv = "PROLIB_CONFIG"

// Config represents the prolib configuration file
type Config struct {
	configPath string
	ini        *ini.File
}

// OutputConfig represents output format configuration
type OutputConfig struct {
	Format string // Report format: human, json
}

// CompareConfig represents compare command defaults
type CompareConfig struct {
	ShowIdenticals bool
}

// ExtractConfig represents extract command defaults
type ExtractConfig struct {
	Directory string   // Destination directory
	Patterns  []string // Default entry patterns
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // Default verbose level (0=quiet, 1=basic, 2=detailed, 3=trace)
	Debug string // Default debug flags (comma-separated)
}

// AllConfig represents all configuration options
type AllConfig struct {
	Output  *OutputConfig
	Compare *CompareConfig
	Extract *ExtractConfig
	Verbose *VerboseConfig
}

// DefaultConfigPath returns $PROLIB_CONFIG, or prolib/config under the user configuration directory
func DefaultConfigPath() string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "prolib", "config")
}

// LoadConfig loads configuration from configPath. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		configPath: configPath,
	}

	if configPath == "" {
		cfg.ini = ini.Empty()
		return cfg, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		VerboseLog(2, "No configuration file at %s, using defaults", configPath)
		cfg.ini = ini.Empty()
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ini = iniFile

	return cfg, nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.configPath
}

// GetOutputConfig returns the output configuration
func (c *Config) GetOutputConfig() *OutputConfig {
	outputConfig := &OutputConfig{
		Format: FormatHuman, // fallback default
	}

	if c.ini.HasSection("output") {
		section := c.ini.Section("output")
		if section.HasKey("format") {
			outputConfig.Format = strings.ToLower(section.Key("format").String())
		}
	}

	return outputConfig
}

// GetCompareConfig returns the compare configuration
func (c *Config) GetCompareConfig() *CompareConfig {
	compareConfig := &CompareConfig{}

	if c.ini.HasSection("compare") {
		section := c.ini.Section("compare")
		if section.HasKey("show_identicals") {
			if show, err := section.Key("show_identicals").Bool(); err == nil {
				compareConfig.ShowIdenticals = show
			}
		}
	}

	return compareConfig
}

// GetExtractConfig returns the extract configuration
func (c *Config) GetExtractConfig() *ExtractConfig {
	extractConfig := &ExtractConfig{
		Directory: ".", // fallback default
	}

	if c.ini.HasSection("extract") {
		section := c.ini.Section("extract")
		if section.HasKey("directory") {
			if dir := section.Key("directory").String(); dir != "" {
				extractConfig.Directory = dir
			}
		}
		if section.HasKey("patterns") {
			extractConfig.Patterns = section.Key("patterns").Strings(",")
		}
	}

	return extractConfig
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
	}

	return verboseConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Output:  c.GetOutputConfig(),
		Compare: c.GetCompareConfig(),
		Extract: c.GetExtractConfig(),
		Verbose: c.GetVerboseConfig(),
	}
}

// ApplyOverrides applies command-line overrides to the configuration.
// Accepts strings like "format:json", "show_identicals:true", "directory:out", "level:2"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "format":
			c.ini.Section("output").Key("format").SetValue(value)
		case "show_identicals":
			c.ini.Section("compare").Key("show_identicals").SetValue(value)
		case "directory":
			c.ini.Section("extract").Key("directory").SetValue(value)
		case "patterns":
			c.ini.Section("extract").Key("patterns").SetValue(value)
		case "level":
			c.ini.Section("verbose").Key("level").SetValue(value)
		case "debug":
			c.ini.Section("verbose").Key("debug").SetValue(value)
		default:
			return fmt.Errorf("unsupported override key '%s' (supported: format, show_identicals, directory, patterns, level, debug)", key)
		}
	}

	return nil
}

// Validate checks every configured value
func (c *Config) Validate() error {
	if err := ValidateOutputFormat(c.GetOutputConfig().Format); err != nil {
		return err
	}
	if c.ini.HasSection("compare") && c.ini.Section("compare").HasKey("show_identicals") {
		if _, err := c.ini.Section("compare").Key("show_identicals").Bool(); err != nil {
			return fmt.Errorf("invalid show_identicals value: %s", c.ini.Section("compare").Key("show_identicals").String())
		}
	}
	if c.ini.HasSection("verbose") && c.ini.Section("verbose").HasKey("level") {
		level, err := c.ini.Section("verbose").Key("level").Int()
		if err != nil {
			return fmt.Errorf("invalid verbose level: %s", c.ini.Section("verbose").Key("level").String())
		}
		if err := ValidateVerboseLevel(level); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatHuman, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}
