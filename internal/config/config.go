package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/pricebot-bootstrap/internal/logger"
)

// Config holds the bootstrap plan: what to install, where to put the
// script and where to fetch it from.
type Config struct {
	// PackageManager is the host package manager binary (pkg on Termux).
	PackageManager string `yaml:"package_manager" toml:"package_manager"`
	// SystemPackages are installed with the package manager, unpinned.
	SystemPackages []string `yaml:"system_packages" toml:"system_packages"`
	// Python is the interpreter that finally runs the script.
	Python string `yaml:"python" toml:"python"`
	// Pip is the Python package installer binary.
	Pip string `yaml:"pip" toml:"pip"`
	// PythonLibraries are installed with pip, unpinned.
	PythonLibraries []string `yaml:"python_libraries" toml:"python_libraries"`
	// WorkDir is created if missing and becomes the working directory.
	WorkDir string `yaml:"work_dir" toml:"work_dir"`
	// ScriptName is the file name of the fetched script inside WorkDir.
	ScriptName string `yaml:"script_name" toml:"script_name"`
	// ScriptURL is any go-getter source; plain HTTPS by default.
	ScriptURL string `yaml:"script_url" toml:"script_url"`
	// StateFile stores the last run record. Relative paths live in WorkDir.
	StateFile string `yaml:"state_file" toml:"state_file"`
	// LockFile holds the PID of a running bootstrap.
	LockFile string `yaml:"lock_file" toml:"lock_file"`
	// StepTimeout bounds each external command. Zero means no timeout.
	StepTimeout time.Duration `yaml:"step_timeout" toml:"step_timeout"`
	// LogLevel overrides the log level of the bootstrap run.
	LogLevel string `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	// SkipSystemPackages skips the package manager update and install steps.
	SkipSystemPackages bool `yaml:"skip_system_packages" toml:"skip_system_packages"`
	// SkipPythonLibraries skips the pip upgrade and install steps.
	SkipPythonLibraries bool `yaml:"skip_python_libraries" toml:"skip_python_libraries"`
}

const (
	// DefaultConfigFilename is looked up in the current directory when no path is given.
	DefaultConfigFilename = "pricebot-bootstrap.yaml"

	// DefaultPackageManager is the Termux package manager front end.
	DefaultPackageManager = "pkg"

	// DefaultPython is the interpreter binary name.
	DefaultPython = "python"

	// DefaultPip is the Python package installer binary name.
	DefaultPip = "pip"

	// DefaultWorkDir is where the script is placed and run.
	DefaultWorkDir = "~/pricebot"

	// DefaultScriptName is the file name of the fetched script.
	DefaultScriptName = "robot.py"

	// DefaultScriptURL is the remote location of the script.
	DefaultScriptURL = "https://raw.githubusercontent.com/pricebot/pricebot/main/robot.py"

	// DefaultStateFilename is the run record file name inside the work dir.
	DefaultStateFilename = ".bootstrap-state.json"

	// DefaultLockFile marks a running bootstrap.
	DefaultLockFile = "~/.pricebot-bootstrap.pid"

	// DefaultFilePermissions is the permission for files written by this package.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet         = errors.New("configuration is not set")
	errPackageManagerRequired = errors.New("package manager must be provided")
	errPythonRequired         = errors.New("python interpreter must be provided")
	errScriptURLRequired      = errors.New("script url must be provided")
	errInvalidScriptName      = errors.New("script name must be a plain file name")
	errNegativeTimeout        = errors.New("step timeout must not be negative")
	errUnknownLogLevel        = errors.New("unknown log level")
	errUnknownKeys            = errors.New("unknown settings keys")
)

// DefaultSystemPackages returns the host packages installed by default:
// interpreter, version control, compiler, TLS library, two database engines,
// two numeric libraries and a transfer tool.
func DefaultSystemPackages() []string {
	return []string{
		"python",
		"git",
		"clang",
		"openssl",
		"sqlite",
		"postgresql",
		"python-numpy",
		"libopenblas",
		"curl",
	}
}

// DefaultPythonLibraries returns the pip packages the script imports.
func DefaultPythonLibraries() []string {
	return []string{
		"flask",
		"pandas",
		"aiohttp",
		"beautifulsoup4",
		"lxml",
		"fake-useragent",
		"langdetect",
		"scikit-learn",
		"openpyxl",
		"tenacity",
	}
}

// Default returns a configuration filled with built-in values.
// Paths are not expanded until Validate runs.
func Default() *Config {
	return &Config{
		PackageManager:  DefaultPackageManager,
		SystemPackages:  DefaultSystemPackages(),
		Python:          DefaultPython,
		Pip:             DefaultPip,
		PythonLibraries: DefaultPythonLibraries(),
		WorkDir:         DefaultWorkDir,
		ScriptName:      DefaultScriptName,
		ScriptURL:       DefaultScriptURL,
		StateFile:       DefaultStateFilename,
		LockFile:        DefaultLockFile,
	}
}

// Load reads settings from path on top of the defaults and validates them.
// An empty path, or a missing file at DefaultConfigFilename, yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		contents, err := os.ReadFile(filepath.Clean(path))

		switch {
		case err == nil:
			if err = decode(path, contents, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename:
			// No settings file next to the binary: run with defaults.
		default:
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path, as TOML for .toml files and YAML otherwise.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	var buf bytes.Buffer

	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
	} else {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}

		buf.Write(data)
	}

	if err := os.WriteFile(filepath.Clean(path), buf.Bytes(), DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields, fills optional ones and expands "~" in paths.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(cfg.PackageManager) == "" {
		return errPackageManagerRequired
	}

	if strings.TrimSpace(cfg.Python) == "" {
		return errPythonRequired
	}

	if cfg.Pip == "" {
		cfg.Pip = DefaultPip
	}

	cfg.ScriptURL = strings.TrimSpace(cfg.ScriptURL)
	if cfg.ScriptURL == "" {
		return errScriptURLRequired
	}

	if cfg.ScriptName == "" {
		cfg.ScriptName = DefaultScriptName
	}

	if cfg.ScriptName != filepath.Base(cfg.ScriptName) || cfg.ScriptName == "." || cfg.ScriptName == ".." {
		return fmt.Errorf("%w: %q", errInvalidScriptName, cfg.ScriptName)
	}

	if cfg.StepTimeout < 0 {
		return errNegativeTimeout
	}

	if cfg.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("%w: %s", errUnknownLogLevel, cfg.LogLevel)
		}
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFile
	}

	for _, p := range []*string{&cfg.WorkDir, &cfg.StateFile, &cfg.LockFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %s: %w", *p, err)
		}

		*p = filepath.Clean(expanded)
	}

	// The bootstrap changes into WorkDir, so later relative paths would no longer resolve.
	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", cfg.WorkDir, err)
	}

	cfg.WorkDir = workDir

	return nil
}

// ScriptPath is the absolute location of the fetched script.
func (c *Config) ScriptPath() string {
	return filepath.Join(c.WorkDir, c.ScriptName)
}

// StatePath is the location of the run record.
func (c *Config) StatePath() string {
	if filepath.IsAbs(c.StateFile) {
		return c.StateFile
	}

	return filepath.Join(c.WorkDir, c.StateFile)
}

func decode(path string, contents []byte, cfg *Config) error {
	if isTOML(path) {
		meta, err := toml.Decode(string(contents), cfg)
		if err != nil {
			return fmt.Errorf("unmarshal settings: %w", err)
		}

		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("%w: %v", errUnknownKeys, undecoded)
		}

		return nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("unmarshal settings: %w", err)
	}

	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
