package metadata

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hondana-dev/hondana/pkg/calibre"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name           string
		stem           string
		expectedTitle  string
		expectedAuthor string
	}{
		{
			name:           "bracketed author",
			stem:           "[村上春樹] ノルウェイの森",
			expectedTitle:  "ノルウェイの森",
			expectedAuthor: "村上春樹",
		},
		{
			name:           "title dash author",
			stem:           "The Hobbit - J.R.R. Tolkien",
			expectedTitle:  "The Hobbit",
			expectedAuthor: "J.R.R. Tolkien",
		},
		{
			name:           "dash splits only once",
			stem:           "Foo - Bar - Baz",
			expectedTitle:  "Foo",
			expectedAuthor: "Bar - Baz",
		},
		{
			name:           "plain title",
			stem:           "Some Book",
			expectedTitle:  "Some Book",
			expectedAuthor: "",
		},
		{
			name:           "bracket takes priority over dash",
			stem:           "[Author] Title - Subtitle",
			expectedTitle:  "Title - Subtitle",
			expectedAuthor: "Author",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, author := ParseFilename(tt.stem)
			assert.Equal(t, tt.expectedTitle, title)
			assert.Equal(t, tt.expectedAuthor, author)
		})
	}
}

func TestResolveCalibre(t *testing.T) {
	r := NewResolver()

	book := &calibre.Book{
		ID:          7,
		Title:       "容疑者Xの献身",
		Author:      "東野圭吾",
		AuthorID:    3,
		LangCode:    "jpn",
		Series:      "ガリレオ",
		SeriesIndex: pointerutil.Float64(3),
		Tags:        []string{"推理"},
		Publisher:   "文藝春秋",
		PubDate:     &models.YearMonth{Year: 2005, Month: 8},
	}

	meta := r.ResolveCalibre(book)
	assert.Equal(t, models.LanguageJapanese, meta.Language)
	assert.Equal(t, "東野圭吾", meta.Author)
	assert.Equal(t, "東野圭吾", meta.AuthorKey)
	assert.Equal(t, "ガリレオ", meta.Series)
	assert.Equal(t, models.DataSourceCalibre, meta.Source)
	require.NotNil(t, meta.PubDate)
	assert.Equal(t, models.YearMonth{Year: 2005, Month: 8}, *meta.PubDate)
}

func TestResolveCalibreWithoutAuthor(t *testing.T) {
	r := NewResolver()

	meta := r.ResolveCalibre(&calibre.Book{ID: 1, Title: "Anonymous Work"})
	assert.Equal(t, UnknownAuthor, meta.Author)
	assert.Equal(t, "unknown", meta.AuthorKey)
	assert.Equal(t, models.LanguageEnglish, meta.Language)
}

func TestResolveFileFromFilename(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	r := NewResolver()

	dir := t.TempDir()
	path := filepath.Join(dir, "[Jane Author] Some Title.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	meta := r.ResolveFile(ctx, path)
	assert.Equal(t, "Some Title", meta.Title)
	assert.Equal(t, "Jane Author", meta.Author)
	assert.Equal(t, models.DataSourceFilename, meta.Source)
}

func TestResolveFileFallsBackToDirname(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	r := NewResolver()

	dir := filepath.Join(t.TempDir(), "宮沢賢治")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "銀河鉄道の夜.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	meta := r.ResolveFile(ctx, path)
	assert.Equal(t, "銀河鉄道の夜", meta.Title)
	assert.Equal(t, "宮沢賢治", meta.Author)
	assert.Equal(t, models.LanguageJapanese, meta.Language)
}

func TestResolveFileFilenameAuthorKeepsEmbeddedSource(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	r := NewResolver()

	// The EPUB carries a title but no author, so the author comes from
	// the filename. The record still counts as embedded: a lower stage
	// filling a gap must not demote the source.
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Embedded Title</dc:title>
    <dc:language>en</dc:language>
  </metadata>
</package>`
	dir := t.TempDir()
	path := filepath.Join(dir, "[Jane Author] Ignored Title.epub")
	writeEPUB(t, path, opfXML)

	meta := r.ResolveFile(ctx, path)
	assert.Equal(t, "Embedded Title", meta.Title)
	assert.Equal(t, "Jane Author", meta.Author)
	assert.Equal(t, models.DataSourceEmbedded, meta.Source)
}

func writeEPUB(t *testing.T, path, opfXML string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	mimetypeEntry, err := w.Create("mimetype")
	require.NoError(t, err)
	_, err = mimetypeEntry.Write([]byte("application/epub+zip"))
	require.NoError(t, err)
	opfEntry, err := w.Create("OEBPS/content.opf")
	require.NoError(t, err)
	_, err = opfEntry.Write([]byte(opfXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestResolveFileUnreadableEmbeddedFallsBack(t *testing.T) {
	ctx := logger.New().WithContext(context.Background())
	r := NewResolver()

	// Not a real EPUB, so embedded extraction fails and the filename is
	// used instead.
	dir := t.TempDir()
	path := filepath.Join(dir, "Broken Book - Some Author.epub")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	meta := r.ResolveFile(ctx, path)
	assert.Equal(t, "Broken Book", meta.Title)
	assert.Equal(t, "Some Author", meta.Author)
	assert.Equal(t, models.DataSourceFilename, meta.Source)
}
