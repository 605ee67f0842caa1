// Package source enumerates the items a run will process. Items come
// from the Calibre database, from filesystem scans of loose files, or
// both; every item gets a stable ID so progress rows survive across
// runs.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hondana-dev/hondana/pkg/calibre"
	"github.com/hondana-dev/hondana/pkg/config"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// File is one physical file belonging to an item.
type File struct {
	Path string
	Ext  string
}

// Item is one unit of work. Calibre items may carry several files (one
// per stored format); filesystem items carry exactly one.
type Item struct {
	ID         string
	SourceType string
	CalibreID  int
	Title      string
	Files      []File
}

// Source enumerates items from one backing store.
type Source interface {
	Enumerate(ctx context.Context) ([]*Item, error)
}

// CalibreID formats the stable item ID for a Calibre book.
func CalibreID(bookID int) string {
	return fmt.Sprintf("calibre:%d", bookID)
}

// FilesystemID formats the stable item ID for a loose file.
func FilesystemID(path string) string {
	return "fs:" + path
}

// Merge combines items from several sources into one stable ordering.
func Merge(itemLists ...[]*Item) []*Item {
	merged := []*Item{}
	for _, items := range itemLists {
		merged = append(merged, items...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged
}

// CalibreSource enumerates books out of a Calibre database.
type CalibreSource struct {
	svc *calibre.Service
	cfg *config.UserConfig
}

func NewCalibreSource(svc *calibre.Service, cfg *config.UserConfig) *CalibreSource {
	return &CalibreSource{svc: svc, cfg: cfg}
}

func (s *CalibreSource) Enumerate(ctx context.Context) ([]*Item, error) {
	books, err := s.svc.ListBooks(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	items := []*Item{}
	for _, book := range books {
		item := &Item{
			ID:         CalibreID(book.ID),
			SourceType: models.ItemSourceCalibre,
			CalibreID:  book.ID,
			Title:      book.Title,
		}
		for _, format := range book.Formats {
			ext := strings.ToLower(format.Format)
			if !s.cfg.SupportsFormat(ext) {
				continue
			}
			item.Files = append(item.Files, File{
				Path: book.FilePath(s.cfg.CalibreLibrary, format),
				Ext:  ext,
			})
		}
		if len(item.Files) == 0 {
			logger.FromContext(ctx).Debug("skipping book with no supported formats", logger.Data{"book_id": book.ID})
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// FilesystemSource walks the configured source directories for loose
// ebook files.
type FilesystemSource struct {
	cfg *config.UserConfig
}

func NewFilesystemSource(cfg *config.UserConfig) *FilesystemSource {
	return &FilesystemSource{cfg: cfg}
}

func (s *FilesystemSource) Enumerate(ctx context.Context) ([]*Item, error) {
	items := []*Item{}
	for _, root := range s.cfg.SourceDirectories {
		rootItems, err := s.enumerateRoot(ctx, root)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		items = append(items, rootItems...)
	}
	return items, nil
}

func (s *FilesystemSource) enumerateRoot(ctx context.Context, root string) ([]*Item, error) {
	log := logger.FromContext(ctx)

	items := []*Item{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if entry.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ext, ok := s.detectFormat(path)
		if !ok {
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			return errors.WithStack(err)
		}

		stem := filepath.Base(absPath)
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
		items = append(items, &Item{
			ID:         FilesystemID(absPath),
			SourceType: models.ItemSourceFilesystem,
			Title:      stem,
			Files:      []File{{Path: absPath, Ext: ext}},
		})
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	log.Info("scanned source directory", logger.Data{"root": root, "count": len(items)})
	return items, nil
}

// detectFormat decides whether a file is an ebook we handle. The
// extension is trusted when it's in the allow-list; extensionless files
// are sniffed by content.
func (s *FilesystemSource) detectFormat(path string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext != "" {
		return ext, s.cfg.SupportsFormat(ext)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "", false
	}
	switch {
	case mime.Is("application/epub+zip"):
		return "epub", s.cfg.SupportsFormat("epub")
	case mime.Is("application/x-mobipocket-ebook"):
		return "mobi", s.cfg.SupportsFormat("mobi")
	}
	return "", false
}
