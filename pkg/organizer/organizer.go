// Package organizer runs the pipeline: enumerate items, resolve their
// metadata, classify them, compute destination paths, and copy files
// into the organized tree. Every item is processed inside its own error
// boundary; one bad book never stops the batch.
package organizer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hondana-dev/hondana/pkg/authordates"
	"github.com/hondana-dev/hondana/pkg/calibre"
	"github.com/hondana-dev/hondana/pkg/config"
	"github.com/hondana-dev/hondana/pkg/fileutils"
	"github.com/hondana-dev/hondana/pkg/genre"
	"github.com/hondana-dev/hondana/pkg/metadata"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/hondana-dev/hondana/pkg/pathbuilder"
	"github.com/hondana-dev/hondana/pkg/progress"
	"github.com/hondana-dev/hondana/pkg/source"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// logEvery is how many items pass between progress log lines.
const logEvery = 50

// Options controls one run.
type Options struct {
	// DryRun computes and logs every destination without copying.
	DryRun bool
	// Limit caps how many pending items are processed. 0 means all.
	Limit int
	// Resume also picks up items that failed on an earlier run, without
	// resetting their recorded errors first.
	Resume bool
	// RetryFailed flips failed rows back to pending before processing.
	RetryFailed bool
}

// Summary is the outcome of one run.
type Summary struct {
	RunID     string
	Processed int
	Succeeded int
	Failed    int
	Stats     *progress.Stats
}

type Organizer struct {
	cfg        *config.UserConfig
	progress   *progress.Service
	dates      *authordates.Cache
	builder    *pathbuilder.Builder
	classifier *genre.Classifier
	resolver   *metadata.Resolver
	calibreSvc *calibre.Service
	sources    []source.Source
}

// New wires an organizer. calibreSvc may be nil when Calibre enumeration
// is disabled; sources must already reflect that.
func New(cfg *config.UserConfig, progressSvc *progress.Service, dates *authordates.Cache, calibreSvc *calibre.Service, sources []source.Source) *Organizer {
	return &Organizer{
		cfg:        cfg,
		progress:   progressSvc,
		dates:      dates,
		builder:    pathbuilder.NewBuilder(cfg, dates),
		classifier: genre.NewClassifier(cfg),
		resolver:   metadata.NewResolver(),
		calibreSvc: calibreSvc,
		sources:    sources,
	}
}

// Run executes the pipeline.
func (o *Organizer) Run(ctx context.Context, opts Options) (*Summary, error) {
	runID := uuid.New().String()
	log := logger.FromContext(ctx).Data(logger.Data{"run_id": runID})
	ctx = log.WithContext(ctx)

	if opts.RetryFailed {
		count, err := o.progress.ResetFailed(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		log.Info("reset failed items for retry", logger.Data{"count": count})
	}

	if err := o.enumerate(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	pending, err := o.progress.ListByStatus(ctx, models.ItemStatusPending)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if opts.Resume {
		failed, err := o.progress.ListByStatus(ctx, models.ItemStatusFailed)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		pending = append(pending, failed...)
		sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	}
	total := len(pending)
	if opts.Limit > 0 && opts.Limit < len(pending) {
		pending = pending[:opts.Limit]
	}
	log.Info("processing items", logger.Data{"count": len(pending), "total": total, "dry_run": opts.DryRun})

	if err := o.dates.Preload(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	// Resolve everything up front so the author date cache is complete
	// before any path is computed. Without this, a book processed early
	// could get a later date prefix than the same author's books
	// processed afterwards.
	resolved := o.resolveAll(ctx, pending)

	summary := &Summary{RunID: runID}
	for idx, item := range pending {
		if err := ctx.Err(); err != nil {
			return summary, errors.WithStack(err)
		}

		summary.Processed++
		if err := o.processItem(ctx, item, resolved[item.ID], opts.DryRun); err != nil {
			summary.Failed++
			log.Err(err).Warn("item failed", logger.Data{"item_id": item.ID})
			if markErr := o.progress.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
				return summary, errors.WithStack(markErr)
			}
		} else {
			summary.Succeeded++
		}

		if (idx+1)%logEvery == 0 {
			log.Info("progress", logger.Data{
				"processed": idx + 1,
				"of":        len(pending),
				"succeeded": summary.Succeeded,
				"failed":    summary.Failed,
			})
		}
	}

	if !opts.DryRun {
		if err := o.dates.Flush(ctx); err != nil {
			return summary, errors.WithStack(err)
		}
	}

	stats, err := o.progress.Statistics(ctx)
	if err != nil {
		return summary, errors.WithStack(err)
	}
	summary.Stats = stats

	log.Info("run finished", logger.Data{
		"processed": summary.Processed,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"pending":   stats.Pending,
	})
	return summary, nil
}

// enumerate lists items from every source and registers the ones not
// yet tracked.
func (o *Organizer) enumerate(ctx context.Context) error {
	itemLists := make([][]*source.Item, 0, len(o.sources))
	for _, src := range o.sources {
		items, err := src.Enumerate(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		itemLists = append(itemLists, items)
	}

	merged := source.Merge(itemLists...)
	rows := make([]*models.ItemProgress, 0, len(merged))
	for _, item := range merged {
		paths, err := json.Marshal(item.Files)
		if err != nil {
			return errors.WithStack(err)
		}
		title := item.Title
		rows = append(rows, &models.ItemProgress{
			ID:          item.ID,
			SourceType:  item.SourceType,
			SourcePaths: string(paths),
			Title:       &title,
			Status:      models.ItemStatusPending,
		})
	}

	if err := o.progress.Register(ctx, rows); err != nil {
		return errors.WithStack(err)
	}
	logger.FromContext(ctx).Info("enumerated items", logger.Data{"count": len(merged)})
	return nil
}

// resolveAll resolves metadata for every pending item and feeds every
// observed publication date into the author date cache. Items that fail
// to resolve are simply absent from the map and fail at processing time.
func (o *Organizer) resolveAll(ctx context.Context, pending []*models.ItemProgress) map[string]*models.Metadata {
	resolved := map[string]*models.Metadata{}
	for _, item := range pending {
		meta, err := o.resolve(ctx, item)
		if err != nil {
			logger.FromContext(ctx).Err(err).Warn("metadata resolution failed", logger.Data{"item_id": item.ID})
			continue
		}
		resolved[item.ID] = meta
		o.dates.Observe(meta.AuthorKey, meta.Author, meta.PubDate)
	}
	return resolved
}

func (o *Organizer) resolve(ctx context.Context, item *models.ItemProgress) (*models.Metadata, error) {
	switch item.SourceType {
	case models.ItemSourceCalibre:
		if o.calibreSvc == nil {
			return nil, errors.New("calibre item but calibre database is disabled")
		}
		bookID, err := parseCalibreID(item.ID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		book, err := o.calibreSvc.RetrieveBook(ctx, bookID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if book == nil {
			return nil, errors.Errorf("book %d no longer in calibre database", bookID)
		}
		meta := o.resolver.ResolveCalibre(book)

		// The author's earliest date should reflect the whole library,
		// not just the books in this batch.
		if book.AuthorID != 0 {
			earliest, err := o.calibreSvc.EarliestAuthorDate(ctx, book.AuthorID)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			o.dates.Observe(meta.AuthorKey, meta.Author, earliest)
		}
		return meta, nil

	case models.ItemSourceFilesystem:
		files, err := decodeFiles(item.SourcePaths)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if len(files) == 0 {
			return nil, errors.New("item has no files")
		}
		return o.resolver.ResolveFile(ctx, files[0].Path), nil

	default:
		return nil, errors.Errorf("unknown source type %q", item.SourceType)
	}
}

// processItem copies every file of one item to its destination.
func (o *Organizer) processItem(ctx context.Context, item *models.ItemProgress, meta *models.Metadata, dryRun bool) error {
	log := logger.FromContext(ctx)

	if meta == nil {
		return errors.New("metadata could not be resolved")
	}

	if err := o.progress.SetTitle(ctx, item.ID, meta.Title); err != nil {
		return errors.WithStack(err)
	}

	files, err := decodeFiles(item.SourcePaths)
	if err != nil {
		return errors.WithStack(err)
	}

	class := o.classifier.Classify(meta)

	targetDir := ""
	copied := 0
	for _, file := range files {
		target := o.builder.TargetPath(meta, class, file.Ext)
		if targetDir == "" {
			targetDir = filepath.Dir(target)
		}

		if !fileutils.FileExists(file.Path) {
			log.Warn("source file missing", logger.Data{"item_id": item.ID, "path": file.Path})
			continue
		}

		if dryRun {
			log.Info("would copy", logger.Data{"from": file.Path, "to": target})
			copied++
			continue
		}

		// A destination of the right size is a finished earlier copy.
		if fileutils.SameSize(file.Path, target) {
			log.Debug("destination already present", logger.Data{"to": target})
			copied++
			continue
		}

		if err := fileutils.CopyFile(file.Path, target); err != nil {
			return errors.WithStack(err)
		}
		log.Info("copied", logger.Data{"to": target})
		copied++
	}

	if copied == 0 {
		return errors.New("no files could be copied")
	}

	if dryRun {
		return nil
	}
	return errors.WithStack(o.progress.MarkCompleted(ctx, item.ID, targetDir))
}

// PreviewEntry is one line of a preview report.
type PreviewEntry struct {
	ItemID     string
	Title      string
	Author     string
	Language   models.Language
	Series     string
	TargetPath string
	Error      string
}

// Preview resolves the first limit pending items and reports where they
// would land, without touching the filesystem or item statuses.
func (o *Organizer) Preview(ctx context.Context, limit int) ([]*PreviewEntry, error) {
	if err := o.enumerate(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	pending, err := o.progress.ListByStatus(ctx, models.ItemStatusPending)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if limit > 0 && limit < len(pending) {
		pending = pending[:limit]
	}

	if err := o.dates.Preload(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	resolved := o.resolveAll(ctx, pending)

	entries := make([]*PreviewEntry, 0, len(pending))
	for _, item := range pending {
		entry := &PreviewEntry{ItemID: item.ID}
		meta := resolved[item.ID]
		if meta == nil {
			entry.Error = "metadata could not be resolved"
			entries = append(entries, entry)
			continue
		}

		files, err := decodeFiles(item.SourcePaths)
		if err != nil || len(files) == 0 {
			entry.Error = "item has no files"
			entries = append(entries, entry)
			continue
		}

		class := o.classifier.Classify(meta)
		entry.Title = meta.Title
		entry.Author = meta.Author
		entry.Language = meta.Language
		entry.Series = meta.Series
		entry.TargetPath = o.builder.TargetPath(meta, class, files[0].Ext)
		entries = append(entries, entry)
	}
	return entries, nil
}

// FormatPreview renders preview entries as a plain text report.
func FormatPreview(entries []*PreviewEntry) string {
	var b strings.Builder
	divider := strings.Repeat("-", 80)
	for _, entry := range entries {
		if entry.Error != "" {
			fmt.Fprintf(&b, "Item: %s\nError: %s\n%s\n", entry.ItemID, entry.Error, divider)
			continue
		}
		fmt.Fprintf(&b, "Title: %s\nAuthor: %s\nLanguage: %s\n", entry.Title, entry.Author, entry.Language)
		if entry.Series != "" {
			fmt.Fprintf(&b, "Series: %s\n", entry.Series)
		}
		fmt.Fprintf(&b, "Target: %s\n%s\n", entry.TargetPath, divider)
	}
	return b.String()
}

// FailedItems returns the failed rows for reporting.
func (o *Organizer) FailedItems(ctx context.Context) ([]*models.ItemProgress, error) {
	items, err := o.progress.ListByStatus(ctx, models.ItemStatusFailed)
	return items, errors.WithStack(err)
}

func parseCalibreID(itemID string) (int, error) {
	raw, ok := strings.CutPrefix(itemID, "calibre:")
	if !ok {
		return 0, errors.Errorf("not a calibre item ID: %q", itemID)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "bad calibre item ID %q", itemID)
	}
	return id, nil
}

func decodeFiles(payload string) ([]source.File, error) {
	files := []source.File{}
	if payload == "" {
		return files, nil
	}
	if err := json.Unmarshal([]byte(payload), &files); err != nil {
		return nil, errors.WithStack(err)
	}
	return files, nil
}
