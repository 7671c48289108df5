package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

// TestDefaultIsValid checks that the built-in plan validates and expands "~".
func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, Validate(cfg))

	home, err := homedir.Dir()
	require.NoError(t, err)

	require.Equal(t, filepath.Join(home, "pricebot"), cfg.WorkDir)
	require.Equal(t, filepath.Join(home, "pricebot", "robot.py"), cfg.ScriptPath())
	require.Equal(t, filepath.Join(home, "pricebot", DefaultStateFilename), cfg.StatePath())
	require.Equal(t, filepath.Join(home, ".pricebot-bootstrap.pid"), cfg.LockFile)
	require.Equal(t, DefaultSystemPackages(), cfg.SystemPackages)
	require.Equal(t, DefaultPythonLibraries(), cfg.PythonLibraries)
	require.Zero(t, cfg.StepTimeout)
}

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)

	cfg := Default()
	cfg.PackageManager = " "
	require.ErrorIs(t, Validate(cfg), errPackageManagerRequired)

	cfg = Default()
	cfg.Python = ""
	require.ErrorIs(t, Validate(cfg), errPythonRequired)

	cfg = Default()
	cfg.ScriptURL = ""
	require.ErrorIs(t, Validate(cfg), errScriptURLRequired)

	cfg = Default()
	cfg.ScriptName = "../robot.py"
	require.ErrorIs(t, Validate(cfg), errInvalidScriptName)

	cfg = Default()
	cfg.StepTimeout = -time.Second
	require.ErrorIs(t, Validate(cfg), errNegativeTimeout)

	cfg = Default()
	cfg.LogLevel = "loud"
	require.ErrorIs(t, Validate(cfg), errUnknownLogLevel)

	// Optional fields are filled in.
	cfg = Default()
	cfg.Pip = ""
	cfg.ScriptName = ""
	cfg.StateFile = ""
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultPip, cfg.Pip)
	require.Equal(t, DefaultScriptName, cfg.ScriptName)
	require.Equal(t, filepath.Join(cfg.WorkDir, DefaultStateFilename), cfg.StatePath())

	cfg = Default()
	cfg.WorkDir = "pricebot"
	require.NoError(t, Validate(cfg))
	require.True(t, filepath.IsAbs(cfg.WorkDir))
	require.True(t, filepath.IsAbs(cfg.ScriptPath()))
}

// TestLoadEmptyPathUsesDefaults ensures no settings file is needed.
func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultScriptURL, cfg.ScriptURL)
	require.Equal(t, DefaultPackageManager, cfg.PackageManager)
}

// TestLoadMissingExplicitFile fails when a user-provided path does not exist.
func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestLoadYAMLOverlay checks that a partial YAML file only overrides the keys it sets.
func TestLoadYAMLOverlay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	contents := "work_dir: " + filepath.Join(dir, "bot") + "\n" +
		"script_url: https://mirror.local/robot.py\n" +
		"step_timeout: 90s\n" +
		"python_libraries: [flask]\n" +
		"skip_system_packages: true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "bot"), cfg.WorkDir)
	require.Equal(t, "https://mirror.local/robot.py", cfg.ScriptURL)
	require.Equal(t, 90*time.Second, cfg.StepTimeout)
	require.Equal(t, []string{"flask"}, cfg.PythonLibraries)
	require.True(t, cfg.SkipSystemPackages)

	// Untouched keys keep their defaults.
	require.Equal(t, DefaultPackageManager, cfg.PackageManager)
	require.Equal(t, DefaultSystemPackages(), cfg.SystemPackages)
}

// TestLoadYAMLRejectsUnknownKeys protects against typos in settings files.
func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrip_url: https://x\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

// TestLoadTOML decodes the TOML flavour of the settings file.
func TestLoadTOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	contents := `package_manager = "apt-get"
system_packages = ["python3", "git"]
work_dir = "` + filepath.ToSlash(filepath.Join(dir, "bot")) + `"
step_timeout = "2m"
log_level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "apt-get", cfg.PackageManager)
	require.Equal(t, []string{"python3", "git"}, cfg.SystemPackages)
	require.Equal(t, filepath.Join(dir, "bot"), cfg.WorkDir)
	require.Equal(t, 2*time.Minute, cfg.StepTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, DefaultPythonLibraries(), cfg.PythonLibraries)

	// Unknown keys are rejected.
	require.NoError(t, os.WriteFile(path, []byte("pakage_manager = \"apt\"\n"), 0o600))

	_, err = Load(path)
	require.ErrorIs(t, err, errUnknownKeys)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := Default()
	cfg.WorkDir = filepath.Join(dir, "bot")
	cfg.ScriptURL = "https://updates.local/robot.py"
	cfg.StepTimeout = 10 * time.Minute

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}
