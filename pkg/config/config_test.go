package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hondana-dev/hondana/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadUserConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `{"target_root": "/library"}`)

	cfg, err := LoadUserConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/library", cfg.TargetRoot)
	assert.True(t, cfg.UseCalibreDatabase)
	assert.Equal(t, []string{"epub", "mobi", "azw3", "txt"}, cfg.SupportedFormats)
	assert.Equal(t, "TXT files", cfg.TXTFolderName)
	assert.Equal(t, 240, cfg.MaxPathLength)
	assert.Equal(t, "Japanese", cfg.LanguageNames["jpn"])
	assert.Equal(t, "ライトノベル", cfg.JapaneseCategories["light_novel"])
	assert.Equal(t, "Fiction", cfg.EnglishCategories["fiction"])
	assert.NotEmpty(t, cfg.LightNovelKeywords)
	assert.NotEmpty(t, cfg.FictionTags["mystery"])
}

func TestLoadUserConfigOverrides(t *testing.T) {
	path := writeConfigFile(t, `{
		"target_root": "/library",
		"calibre_library": "/calibre",
		"source_directories": ["/loose"],
		"max_path_length": 180,
		"txt_folder": "Plain Text"
	}`)

	cfg, err := LoadUserConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/calibre", cfg.CalibreLibrary)
	assert.Equal(t, filepath.Join("/calibre", "metadata.db"), cfg.CalibreDatabase)
	assert.Equal(t, []string{"/loose"}, cfg.SourceDirectories)
	assert.Equal(t, 180, cfg.MaxPathLength)
	assert.Equal(t, "Plain Text", cfg.TXTFolderName)
}

func TestLoadUserConfigDisablesCalibreDatabase(t *testing.T) {
	path := writeConfigFile(t, `{"target_root": "/library", "use_calibre_db": false}`)

	cfg, err := LoadUserConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.UseCalibreDatabase)
}

func TestLoadUserConfigExplicitDatabasePath(t *testing.T) {
	path := writeConfigFile(t, `{
		"target_root": "/library",
		"calibre_library": "/calibre",
		"calibre_database": "/elsewhere/metadata.db"
	}`)

	cfg, err := LoadUserConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/metadata.db", cfg.CalibreDatabase)
}

func TestLoadUserConfigMissingTargetRoot(t *testing.T) {
	path := writeConfigFile(t, `{}`)

	_, err := LoadUserConfig(path)
	var appErr *errcodes.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "config_invalid", appErr.Code)
}

func TestLoadUserConfigPathLengthFloor(t *testing.T) {
	path := writeConfigFile(t, `{"target_root": "/library", "max_path_length": 10}`)

	_, err := LoadUserConfig(path)
	assert.Error(t, err)
}

func TestLoadUserConfigBadJSON(t *testing.T) {
	path := writeConfigFile(t, `{not json`)

	_, err := LoadUserConfig(path)
	assert.Error(t, err)
}

func TestDefaultUserConfigPath(t *testing.T) {
	t.Setenv("CONFIG_DIRECTORY", "/etc/hondana")
	assert.Equal(t, "/etc/hondana/config.json", DefaultUserConfigPath())

	t.Setenv("CONFIG_DIRECTORY", "")
	assert.Equal(t, "/config/config.json", DefaultUserConfigPath())
}

func TestConfigLoadUser(t *testing.T) {
	path := writeConfigFile(t, `{"target_root": "/library"}`)

	cfg := &Config{}
	require.NoError(t, cfg.LoadUser(path))
	assert.Equal(t, "/library", cfg.User.TargetRoot)
}

func TestSupportsFormat(t *testing.T) {
	path := writeConfigFile(t, `{"target_root": "/library"}`)
	cfg, err := LoadUserConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.SupportsFormat("epub"))
	assert.True(t, cfg.SupportsFormat("txt"))
	assert.False(t, cfg.SupportsFormat("pdf"))
}
