// Package pathbuilder computes the destination path for a book. The
// layout is language/category/"[YYYY-MM] Author"/series-or-title, with
// TXT files routed into one flat folder instead. Path building is pure:
// the same metadata and cache state always yield the same path, and
// nothing here touches the filesystem.
package pathbuilder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hondana-dev/hondana/pkg/authordates"
	"github.com/hondana-dev/hondana/pkg/config"
	"github.com/hondana-dev/hondana/pkg/fileutils"
	"github.com/hondana-dev/hondana/pkg/genre"
	"github.com/hondana-dev/hondana/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// Light novels split by whether they belong to a series.
	seriesSubfolder     = "【有系列】"
	standaloneSubfolder = "【单行本】"

	// minSegmentRunes is the floor a truncated segment never goes below.
	minSegmentRunes = 8
)

var titleCaser = cases.Title(language.English)

type Builder struct {
	cfg   *config.UserConfig
	dates *authordates.Cache
}

func NewBuilder(cfg *config.UserConfig, dates *authordates.Cache) *Builder {
	return &Builder{cfg: cfg, dates: dates}
}

// TargetPath returns the full destination path for one file of a book.
// ext is the lower-case extension without the dot.
func (b *Builder) TargetPath(meta *models.Metadata, class genre.Classification, ext string) string {
	// TXT files skip the whole hierarchy and land in one flat folder.
	if ext == "txt" {
		filename := fileutils.Sanitize(meta.Title) + ".txt"
		return b.enforceBudget(filepath.Join(b.cfg.TargetRoot, b.cfg.TXTFolderName), filename)
	}

	dir := filepath.Join(append([]string{b.cfg.TargetRoot}, b.segments(meta, class)...)...)
	return b.enforceBudget(dir, b.fileName(meta, ext))
}

// segments builds the directory segments under the target root.
func (b *Builder) segments(meta *models.Metadata, class genre.Classification) []string {
	segments := []string{b.languageFolder(meta.Language)}

	switch meta.Language {
	case models.LanguageJapanese:
		segments = append(segments, b.categoryFolder(b.cfg.JapaneseCategories, class.Category))
		if class.Category == genre.CategoryLightNovel {
			if meta.Series != "" {
				segments = append(segments, seriesSubfolder)
			} else {
				segments = append(segments, standaloneSubfolder)
			}
		}
	case models.LanguageEnglish:
		segments = append(segments, b.categoryFolder(b.cfg.EnglishCategories, class.Category))
		if class.Subcategory != "" {
			segments = append(segments, titleCaser.String(class.Subcategory))
		}
	}
	// Chinese books go straight under the language folder.

	segments = append(segments, b.authorFolder(meta))

	bookFolder := fileutils.Sanitize(meta.Series)
	if bookFolder == "" {
		bookFolder = fileutils.Sanitize(meta.Title)
	}
	if bookFolder == "" {
		bookFolder = "Untitled"
	}
	return append(segments, bookFolder)
}

func (b *Builder) languageFolder(lang models.Language) string {
	if name, ok := b.cfg.LanguageNames[string(lang)]; ok {
		return name
	}
	return string(lang)
}

func (b *Builder) categoryFolder(names map[string]string, category string) string {
	if name, ok := names[category]; ok {
		return name
	}
	return category
}

// authorFolder is "[YYYY-MM] Author", where the date is the author's
// earliest known publication across the whole collection. Authors with
// no dated book get a bare author segment, no prefix.
func (b *Builder) authorFolder(meta *models.Metadata) string {
	author := fileutils.Sanitize(meta.Author)
	if author == "" {
		author = "Unknown"
	}
	if date, ok := b.dates.Lookup(meta.AuthorKey); ok {
		return "[" + date.String() + "] " + author
	}
	return author
}

// fileName is the sanitized title plus extension, with a zero-padded
// series index prefix when the book is a numbered series entry.
func (b *Builder) fileName(meta *models.Metadata, ext string) string {
	base := fileutils.Sanitize(meta.Title)
	if base == "" {
		base = "Untitled"
	}
	if meta.Series != "" && meta.SeriesNumber != nil {
		base = fmt.Sprintf("%02d %s", int(*meta.SeriesNumber), base)
	}
	return base + "." + ext
}

// enforceBudget keeps the full path within the configured length by
// truncating the least significant pieces in turn: the final directory
// segment, the filename stem, then the author folder above them. The
// extension and the language/category prefix always survive.
func (b *Builder) enforceBudget(dir, filename string) string {
	full := filepath.Join(dir, filename)
	overflow := len(full) - b.cfg.MaxPathLength
	if overflow <= 0 {
		return full
	}

	parent, bookFolder := filepath.Split(dir)
	dir = filepath.Join(parent, truncateSegment(bookFolder, overflow))

	full = filepath.Join(dir, filename)
	overflow = len(full) - b.cfg.MaxPathLength
	if overflow <= 0 {
		return full
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	filename = truncateSegment(stem, overflow) + ext

	full = filepath.Join(dir, filename)
	overflow = len(full) - b.cfg.MaxPathLength
	if overflow <= 0 {
		return full
	}

	// A long author folder can still blow the budget. It sits directly
	// above the book folder; the flat TXT layout has no such segment.
	authorParent := filepath.Dir(dir)
	if authorParent != filepath.Clean(b.cfg.TargetRoot) {
		grandparent, authorFolder := filepath.Split(authorParent)
		dir = filepath.Join(grandparent, truncateSegment(authorFolder, overflow), filepath.Base(dir))
	}
	return filepath.Join(dir, filename)
}

// truncateSegment removes up to overflow bytes from the end of a
// segment, staying rune-aligned and never dropping below the minimum.
func truncateSegment(segment string, overflow int) string {
	runes := []rune(segment)
	for len(runes) > minSegmentRunes && len(string(runes)) > len(segment)-overflow {
		runes = runes[:len(runes)-1]
	}
	return strings.Trim(string(runes), " .")
}
