package config

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/hondana-dev/hondana/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// UserConfig holds the organize settings the user controls: where books
// come from, where the organized tree is written, and the classification
// keyword tables.
type UserConfig struct {
	// SourceDirectories are scanned recursively for loose ebook files.
	SourceDirectories []string `json:"source_directories"`
	// CalibreLibrary is the root of a Calibre library. Book paths in the
	// Calibre database are relative to it.
	CalibreLibrary string `json:"calibre_library"`
	// CalibreDatabase is the path to metadata.db. Defaults to
	// CalibreLibrary/metadata.db when empty.
	CalibreDatabase string `json:"calibre_database"`
	// UseCalibreDatabase enables enumeration from the Calibre database.
	UseCalibreDatabase bool `json:"use_calibre_db" default:"true"`

	TargetRoot string `json:"target_root" validate:"required"`

	SupportedFormats []string `json:"supported_formats" default:"[\"epub\",\"mobi\",\"azw3\",\"txt\"]"`
	TXTFolderName    string   `json:"txt_folder" default:"TXT files"`
	MaxPathLength    int      `json:"max_path_length" default:"240" validate:"gte=80"`

	// LanguageNames maps normalized language codes to folder display names.
	LanguageNames map[string]string `json:"language_names" default:"{\"jpn\":\"Japanese\",\"eng\":\"English\",\"zho\":\"Chinese\"}"`

	// LightNovelKeywords match against Japanese publishers and tags to
	// route books into the light novel category.
	LightNovelKeywords []string `json:"light_novel_keywords" default:"[\"文庫\",\"ラノベ\",\"ライトノベル\",\"電撃\",\"ファンタジア\",\"スニーカー\",\"ガガガ\",\"MF文庫\",\"light novel\"]"`

	// FictionTags maps an English fiction sub-category to the tag keywords
	// that select it.
	FictionTags map[string][]string `json:"fiction_tags" default:"{\"mystery\":[\"mystery\",\"detective\",\"crime\",\"thriller\"],\"scifi\":[\"science fiction\",\"sci-fi\",\"sf\"],\"fantasy\":[\"fantasy\"],\"romance\":[\"romance\"],\"horror\":[\"horror\"]}"`

	// JapaneseCategories and EnglishCategories map classifier category keys
	// to folder display names in the organized tree.
	JapaneseCategories map[string]string `json:"japanese_categories" default:"{\"light_novel\":\"ライトノベル\",\"mystery\":\"ミステリー\",\"scifi_fantasy\":\"SF・ファンタジー\",\"literature\":\"文学\",\"other\":\"その他\"}"`
	EnglishCategories  map[string]string `json:"english_categories" default:"{\"classics\":\"Classics\",\"fiction\":\"Fiction\",\"non_fiction\":\"Non-Fiction\"}"`
}

// DefaultUserConfigPath is config.json under CONFIG_DIRECTORY
// (/config when unset).
func DefaultUserConfigPath() string {
	configDir := os.Getenv("CONFIG_DIRECTORY")
	if configDir == "" {
		configDir = "/config"
	}

	return filepath.Join(configDir, "config.json")
}

// LoadUserConfig reads the config file, fills defaults, and validates it.
// A missing file yields the defaults; since TargetRoot is required, that
// path only makes sense in tests that fill it in afterwards, so a missing
// file with no TargetRoot still fails validation.
func LoadUserConfig(configFilePath string) (*UserConfig, error) {
	userConfig := &UserConfig{}

	// Defaults go in first so the file can override them, including with
	// zero values like "use_calibre_db": false.
	if err := defaults.Set(userConfig); err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := os.ReadFile(configFilePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WithStack(err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, userConfig); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if userConfig.CalibreDatabase == "" && userConfig.CalibreLibrary != "" {
		userConfig.CalibreDatabase = filepath.Join(userConfig.CalibreLibrary, "metadata.db")
	}

	if err := validator.New().Struct(userConfig); err != nil {
		return nil, errors.WithStack(errcodes.ConfigInvalid(err.Error()))
	}

	return userConfig, nil
}

// SupportsFormat reports whether ext (without the dot, lowercase) is in
// the configured allow-list.
func (uc *UserConfig) SupportsFormat(ext string) bool {
	for _, f := range uc.SupportedFormats {
		if f == ext {
			return true
		}
	}
	return false
}
