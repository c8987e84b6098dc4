package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"diffmerge/keys"
	"diffmerge/text"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadIn(t *testing.T, dir string, cmd *cobra.Command) (*Config, error) {
	t.Helper()
	t.Setenv(EnvJSON, os.Getenv(EnvJSON))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Cleanup(func() { cfgFile = "" })
	return Load(viper.New(), cmd, dir)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadIn(t, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2000, cfg.AutoApplyDelay)
	assert.Equal(t, 20, cfg.MinCodeLength)
	assert.Equal(t, "greedy", cfg.DiffStrategy)
	assert.True(t, cfg.EmbedForeignBlocks)
	assert.Equal(t, 100, cfg.Intent.ReplaceThreshold)
	assert.Contains(t, cfg.Intent.AutoApply, "make it better")
	assert.Equal(t, []string{"<M-CR>"}, cfg.Keymap["quick_accept"])
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
auto_apply_delay: 500
diff_strategy: myers
intent:
  auto_apply: [polish]
keymap:
  accept: ["<Tab>"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".yaml"), []byte(yaml), 0644))

	cfg, err := loadIn(t, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.AutoApplyDelay)
	assert.Equal(t, "myers", cfg.DiffStrategy)
	assert.Equal(t, []string{"polish"}, cfg.Intent.AutoApply)
	assert.Contains(t, cfg.Intent.Replace, "improve", "unset keys keep defaults")
	assert.Equal(t, []string{"<Tab>"}, cfg.Keymap["accept"])
	assert.Equal(t, []string{"<Esc>"}, cfg.Keymap["reject"])
}

func TestLoadExplicitJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"min_code_length": 5, "log_level": "debug"}`), 0644))
	cfgFile = path

	cfg, err := loadIn(t, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MinCodeLength)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := loadIn(t, "", nil)
	assert.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".yaml"),
		[]byte("auto_apply_delay: 100\nmin_code_length: 1\ndiff_strategy: myers\n"), 0644))

	t.Setenv(EnvJSON, `{"auto_apply_delay": 200, "min_code_length": 2}`)
	t.Setenv("DIFFMERGE_MIN_CODE_LENGTH", "3")

	cmd := &cobra.Command{Use: "test"}
	InitFlags(cmd)
	require.NoError(t, cmd.PersistentFlags().Set("diff_strategy", "greedy"))

	cfg, err := loadIn(t, dir, cmd)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.AutoApplyDelay, "plugin JSON over file")
	assert.Equal(t, 3, cfg.MinCodeLength, "env over plugin JSON")
	assert.Equal(t, "greedy", cfg.DiffStrategy, "flag over file")
}

func TestUnsetFlagsDoNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".yaml"), []byte("auto_apply_delay: 750\n"), 0644))

	cmd := &cobra.Command{Use: "test"}
	InitFlags(cmd)

	cfg, err := loadIn(t, dir, cmd)
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.AutoApplyDelay)
}

func TestLoadInvalidPluginJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvJSON, `{"auto_apply_delay":`)

	_, err := Load(viper.New(), nil, dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.AutoApplyDelay = 0
	cfg.MinCodeLength = -1
	cfg.DiffStrategy = "patience"
	cfg.Keymap = map[string][]string{"accept": {"<CR>"}, "reject": {"<CR>"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, text.ErrUnknownStrategy)
	assert.ErrorIs(t, err, keys.ErrDuplicateBinding)
	assert.Contains(t, err.Error(), "auto_apply_delay")
	assert.Contains(t, err.Error(), "min_code_length")
}

func TestEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoApplyDelay = 1500
	cfg.DiffStrategy = "MYERS"

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, ec.AutoApplyDelay)
	assert.Equal(t, text.StrategyMyers, ec.DiffStrategy)
	assert.Equal(t, 20, ec.MinCodeLength)
	require.NotNil(t, ec.Keymap)
	cmd, ok := ec.Keymap.Lookup(keys.MustParseKey("<D-r>"))
	assert.True(t, ok)
	assert.Equal(t, keys.CommandForceReplace, cmd)

	cfg.Keymap = map[string][]string{"explode": {"x"}}
	_, err = cfg.EngineConfig()
	assert.Error(t, err)
}
