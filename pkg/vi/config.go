package vi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sblinch/kdl-go"
	"gopkg.in/yaml.v3"
)

// ConfigFiles are the project file names FindConfig looks for, in order.
var ConfigFiles = []string{"vic.kdl", "vic.yaml", "vic.yml"}

// Config is a vic project file. Either format is accepted:
//
//	entry "main.vi"
//	output "lib/main.dart"
//	http_timeout "10s"
//
// or the same keys as YAML.
type Config struct {
	Entry            string `kdl:"entry" yaml:"entry"`
	Output           string `kdl:"output" yaml:"output"`
	AppClass         string `kdl:"app_class" yaml:"app_class"`
	Title            string `kdl:"title" yaml:"title"`
	DebugBanner      bool   `kdl:"debug_banner" yaml:"debug_banner"`
	HTTPTimeout      string `kdl:"http_timeout" yaml:"http_timeout"`
	MaxImportDepth   int    `kdl:"max_import_depth" yaml:"max_import_depth"`
	WarningsAsErrors bool   `kdl:"warnings_as_errors" yaml:"warnings_as_errors"`
}

// DefaultConfig returns the settings used when no project file exists.
func DefaultConfig() Config {
	return Config{
		Entry:          "main.vi",
		Output:         "lib/main.dart",
		AppClass:       DefaultAppClass,
		HTTPTimeout:    DefaultHTTPTimeout.String(),
		MaxImportDepth: DefaultMaxImportDepth,
	}
}

// ParseConfig decodes data as KDL or YAML, selected by format ("kdl",
// "yaml" or "yml"). Unset keys keep their defaults.
func ParseConfig(data []byte, format string) (Config, error) {
	cfg := DefaultConfig()
	var err error
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "kdl":
		err = kdl.Unmarshal(data, &cfg)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return cfg, fmt.Errorf("parsing %s config: %w", format, err)
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads a project file, choosing the format from its extension.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), err
	}
	cfg, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FindConfig loads the first of ConfigFiles present in dir. It returns the
// defaults and an empty path when there is none.
func FindConfig(dir string) (Config, string, error) {
	for _, name := range ConfigFiles {
		path := filepath.Join(dir, name)
		cfg, err := LoadConfig(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, path, err
	}
	return DefaultConfig(), "", nil
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxImportDepth < 0 {
		errs = append(errs, fmt.Errorf("max_import_depth must not be negative, got %d", c.MaxImportDepth))
	}
	if c.AppClass != "" && !isIdent(c.AppClass) {
		errs = append(errs, fmt.Errorf("app_class %q is not a valid class name", c.AppClass))
	}
	return errors.Join(errs...)
}

// Timeout parses HTTPTimeout, defaulting to DefaultHTTPTimeout.
func (c Config) Timeout() (time.Duration, error) {
	if c.HTTPTimeout == "" {
		return DefaultHTTPTimeout, nil
	}
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 0, fmt.Errorf("http_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("http_timeout must be positive, got %s", d)
	}
	return d, nil
}

// EmitOptions returns the emitter settings of c.
func (c Config) EmitOptions() EmitOptions {
	return EmitOptions{AppClass: c.AppClass, Title: c.Title, DebugBanner: c.DebugBanner}
}

func isIdent(s string) bool {
	for i, r := range s {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !letter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}
