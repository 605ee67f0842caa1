// Package calibre reads book records out of a Calibre metadata.db. The
// database is opened read-only and never mutated; the organizer treats
// it purely as an enumeration and metadata source.
package calibre

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Format is one stored file of a book, as recorded in Calibre's data
// table. Format is the upper-case format name ("EPUB"); Name is the
// filename without extension.
type Format struct {
	Format string `bun:"format"`
	Name   string `bun:"name"`
}

// Book is one fully joined Calibre book record.
type Book struct {
	ID          int
	Title       string
	Path        string
	PubDate     *models.YearMonth
	AuthorID    int
	Author      string
	LangCode    string
	Series      string
	SeriesIndex *float64
	Tags        []string
	Publisher   string
	Formats     []Format
}

// FilePath returns the absolute path of one format file under the
// Calibre library root. Calibre lays books out as
// <root>/<book path>/<name>.<ext>.
func (b *Book) FilePath(libraryRoot string, f Format) string {
	return filepath.Join(libraryRoot, filepath.FromSlash(b.Path), f.Name+"."+strings.ToLower(f.Format))
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

type bookRow struct {
	ID          int      `bun:"id"`
	Title       string   `bun:"title"`
	Path        string   `bun:"path"`
	PubDate     *string  `bun:"pubdate"`
	SeriesIndex *float64 `bun:"series_index"`
}

// ListBooks returns every book with its joined author, language, series,
// tag, publisher, and format records.
func (svc *Service) ListBooks(ctx context.Context) ([]*Book, error) {
	rows := []bookRow{}
	err := svc.db.NewRaw(`SELECT id, title, path, pubdate, series_index FROM books ORDER BY id`).Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	books := make([]*Book, 0, len(rows))
	for _, row := range rows {
		book, err := svc.hydrate(ctx, row)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		books = append(books, book)
	}

	return books, nil
}

// RetrieveBook returns one fully joined book record.
func (svc *Service) RetrieveBook(ctx context.Context, id int) (*Book, error) {
	rows := []bookRow{}
	err := svc.db.NewRaw(`SELECT id, title, path, pubdate, series_index FROM books WHERE id = ?`, id).Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return svc.hydrate(ctx, rows[0])
}

func (svc *Service) hydrate(ctx context.Context, row bookRow) (*Book, error) {
	book := &Book{
		ID:          row.ID,
		Title:       row.Title,
		Path:        row.Path,
		SeriesIndex: row.SeriesIndex,
	}
	if row.PubDate != nil {
		book.PubDate = models.ParseYearMonth(*row.PubDate)
	}

	type authorRow struct {
		ID   int    `bun:"id"`
		Name string `bun:"name"`
	}
	authors := []authorRow{}
	err := svc.db.NewRaw(`
		SELECT a.id, a.name
		FROM authors a
		JOIN books_authors_link bal ON a.id = bal.author
		WHERE bal.book = ?
		ORDER BY a.name
	`, row.ID).Scan(ctx, &authors)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(authors) > 0 {
		book.AuthorID = authors[0].ID
		book.Author = authors[0].Name
	}

	langs := []string{}
	err = svc.db.NewRaw(`
		SELECT l.lang_code
		FROM books_languages_link bll
		JOIN languages l ON bll.lang_code = l.id
		WHERE bll.book = ?
		ORDER BY bll.item_order
	`, row.ID).Scan(ctx, &langs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(langs) > 0 {
		book.LangCode = langs[0]
	}

	series := []string{}
	err = svc.db.NewRaw(`
		SELECT s.name
		FROM series s
		JOIN books_series_link bsl ON s.id = bsl.series
		WHERE bsl.book = ?
	`, row.ID).Scan(ctx, &series)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(series) > 0 {
		book.Series = series[0]
	}

	err = svc.db.NewRaw(`
		SELECT t.name
		FROM tags t
		JOIN books_tags_link btl ON t.id = btl.tag
		WHERE btl.book = ?
	`, row.ID).Scan(ctx, &book.Tags)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	publishers := []string{}
	err = svc.db.NewRaw(`
		SELECT p.name
		FROM publishers p
		JOIN books_publishers_link bpl ON p.id = bpl.publisher
		WHERE bpl.book = ?
	`, row.ID).Scan(ctx, &publishers)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(publishers) > 0 {
		book.Publisher = publishers[0]
	}

	err = svc.db.NewRaw(`SELECT format, name FROM data WHERE book = ? ORDER BY format`, row.ID).Scan(ctx, &book.Formats)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// EarliestAuthorDate returns the earliest pubdate across all of an
// author's books, or nil when the author has no dated books. The
// organizer seeds its author date cache with this.
func (svc *Service) EarliestAuthorDate(ctx context.Context, authorID int) (*models.YearMonth, error) {
	dates := []string{}
	err := svc.db.NewRaw(`
		SELECT b.pubdate
		FROM books b
		JOIN books_authors_link bal ON b.id = bal.book
		WHERE bal.author = ? AND b.pubdate IS NOT NULL
		ORDER BY b.pubdate ASC
	`, authorID).Scan(ctx, &dates)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var earliest *models.YearMonth
	for _, d := range dates {
		earliest = models.MinYearMonth(earliest, models.ParseYearMonth(d))
	}
	return earliest, nil
}
