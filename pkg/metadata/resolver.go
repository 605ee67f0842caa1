// Package metadata turns raw per-item signals into one normalized
// Metadata record. Sources are tried most-trusted first: a Calibre row,
// then metadata embedded in the file, then the filename, then the parent
// directory name. Later stages only fill fields the earlier ones left
// empty.
package metadata

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hondana-dev/hondana/pkg/authorkey"
	"github.com/hondana-dev/hondana/pkg/calibre"
	"github.com/hondana-dev/hondana/pkg/epub"
	"github.com/hondana-dev/hondana/pkg/language"
	"github.com/hondana-dev/hondana/pkg/mediafile"
	"github.com/hondana-dev/hondana/pkg/mobi"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/robinjoseph08/golib/logger"
)

// UnknownAuthor is the display name used when no source yields an
// author.
const UnknownAuthor = "Unknown"

// bracketAuthorPattern matches "[Author] Title" filenames.
var bracketAuthorPattern = regexp.MustCompile(`^\[([^\]]+)\]\s*(.+)$`)

// Extractor parses embedded metadata out of one file format.
type Extractor func(path string) (*mediafile.Parsed, error)

// Extractors maps a lower-case extension (without the dot) to its
// embedded-metadata parser. TXT files have no embedded metadata and are
// deliberately absent.
var Extractors = map[string]Extractor{
	"epub": epub.Parse,
	"mobi": mobi.Parse,
	"azw3": mobi.Parse,
}

type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveCalibre builds a Metadata from a fully joined Calibre book row.
// Calibre rows are trusted as-is; only the language may still fall back
// to script heuristics when the row carries no usable code.
func (r *Resolver) ResolveCalibre(book *calibre.Book) *models.Metadata {
	meta := &models.Metadata{
		Author:       strings.TrimSpace(book.Author),
		Series:       book.Series,
		SeriesNumber: book.SeriesIndex,
		Title:        book.Title,
		Tags:         book.Tags,
		Publisher:    book.Publisher,
		PubDate:      book.PubDate,
		Source:       models.DataSourceCalibre,
	}
	meta.Language = language.Classify(language.Signal{
		DeclaredCode: book.LangCode,
		TitleText:    book.Title,
		Tags:         book.Tags,
	})
	r.finish(meta)
	return meta
}

// ResolveFile builds a Metadata for a loose file: embedded metadata
// first, then the filename, then the parent directory name. Extraction
// errors are logged and demote the item to the next stage instead of
// failing it.
func (r *Resolver) ResolveFile(ctx context.Context, path string) *models.Metadata {
	meta := &models.Metadata{Source: models.DataSourceDirname}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	declaredCode := ""
	if extract, ok := Extractors[ext]; ok {
		parsed, err := extract(path)
		if err != nil {
			logger.FromContext(ctx).Err(err).Warn("embedded metadata extraction failed", logger.Data{"path": path})
		} else if parsed != nil {
			declaredCode = parsed.LangCode
			r.applyParsed(meta, parsed)
		}
	}

	if meta.Title == "" || meta.Author == "" {
		r.applyFilename(meta, path)
	}
	if meta.Author == "" {
		r.applyDirname(meta, path)
	}

	meta.Language = language.Classify(language.Signal{
		DeclaredCode: declaredCode,
		TitleText:    meta.Title,
		Tags:         meta.Tags,
	})
	r.finish(meta)
	return meta
}

func (r *Resolver) applyParsed(meta *models.Metadata, parsed *mediafile.Parsed) {
	if parsed.Title != "" {
		meta.Title = parsed.Title
		r.noteSource(meta, models.DataSourceEmbedded)
	}
	if len(parsed.Authors) > 0 {
		meta.Author = strings.TrimSpace(parsed.Authors[0])
	}
	meta.Series = parsed.Series
	meta.SeriesNumber = parsed.SeriesNumber
	meta.Tags = parsed.Tags
	meta.Publisher = parsed.Publisher
	meta.PubDate = parsed.PubDate
}

// applyFilename fills title/author from "[Author] Title" or
// "Title - Author" shaped filenames, falling back to the bare stem as
// the title.
func (r *Resolver) applyFilename(meta *models.Metadata, path string) {
	stem := filepath.Base(path)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))

	title, author := ParseFilename(stem)
	if meta.Title == "" && title != "" {
		meta.Title = title
		r.noteSource(meta, models.DataSourceFilename)
	}
	if meta.Author == "" && author != "" {
		meta.Author = author
		r.noteSource(meta, models.DataSourceFilename)
	}
}

// noteSource records which stage contributed core fields. A lower
// priority stage never overwrites a higher one, so a filename-derived
// author does not demote a record whose title came from embedded
// metadata.
func (r *Resolver) noteSource(meta *models.Metadata, src string) {
	if models.DataSourcePriority[src] < models.DataSourcePriority[meta.Source] {
		meta.Source = src
	}
}

// applyDirname uses the parent directory name as the author of last
// resort, unless the file sits directly in a scan root-looking place.
func (r *Resolver) applyDirname(meta *models.Metadata, path string) {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return
	}
	meta.Author = dir
}

func (r *Resolver) finish(meta *models.Metadata) {
	if meta.Author == "" {
		meta.Author = UnknownAuthor
	}
	meta.AuthorKey = authorkey.Key(meta.Author)
	if meta.Title == "" {
		meta.Title = "Untitled"
	}
}

// ParseFilename splits a filename stem into (title, author). Either may
// come back empty.
func ParseFilename(stem string) (string, string) {
	if m := bracketAuthorPattern.FindStringSubmatch(stem); m != nil {
		return strings.TrimSpace(m[2]), strings.TrimSpace(m[1])
	}
	if strings.Contains(stem, " - ") {
		parts := strings.SplitN(stem, " - ", 2)
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(stem), ""
}
