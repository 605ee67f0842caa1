package mobi

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exthRecord struct {
	recType uint32
	data    string
}

// buildMOBI assembles a minimal two-record Palm database whose first
// record carries a MOBI header, an optional EXTH block, and the full
// book name.
func buildMOBI(t *testing.T, fullName string, locale uint32, exth []exthRecord) []byte {
	t.Helper()

	const mobiHeaderLen = 232

	exthBlock := []byte{}
	if len(exth) > 0 {
		body := []byte{}
		for _, rec := range exth {
			entry := make([]byte, 8+len(rec.data))
			binary.BigEndian.PutUint32(entry[0:4], rec.recType)
			binary.BigEndian.PutUint32(entry[4:8], uint32(8+len(rec.data)))
			copy(entry[8:], rec.data)
			body = append(body, entry...)
		}
		exthBlock = make([]byte, 12)
		copy(exthBlock[0:4], "EXTH")
		binary.BigEndian.PutUint32(exthBlock[4:8], uint32(12+len(body)))
		binary.BigEndian.PutUint32(exthBlock[8:12], uint32(len(exth)))
		exthBlock = append(exthBlock, body...)
	}

	mobiHeader := make([]byte, mobiHeaderLen)
	copy(mobiHeader[0:4], "MOBI")
	binary.BigEndian.PutUint32(mobiHeader[4:8], mobiHeaderLen)
	nameOffset := uint32(mobiHeaderStart + mobiHeaderLen + len(exthBlock))
	binary.BigEndian.PutUint32(mobiHeader[84:88], nameOffset)
	binary.BigEndian.PutUint32(mobiHeader[88:92], uint32(len(fullName)))
	binary.BigEndian.PutUint32(mobiHeader[92:96], locale)
	if len(exthBlock) > 0 {
		binary.BigEndian.PutUint32(mobiHeader[exthFlagOffset:exthFlagOffset+4], exthFlagPresent)
	}

	record0 := make([]byte, mobiHeaderStart)
	record0 = append(record0, mobiHeader...)
	record0 = append(record0, exthBlock...)
	record0 = append(record0, fullName...)

	record0Start := uint32(palmHeaderSize + 2*palmRecordSize)
	header := make([]byte, palmHeaderSize)
	copy(header[60:68], "BOOKMOBI")
	binary.BigEndian.PutUint16(header[76:78], 2)

	recordList := make([]byte, 2*palmRecordSize)
	binary.BigEndian.PutUint32(recordList[0:4], record0Start)
	binary.BigEndian.PutUint32(recordList[palmRecordSize:palmRecordSize+4], record0Start+uint32(len(record0)))

	file := append(header, recordList...)
	return append(file, record0...)
}

func writeMOBI(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.mobi")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseWithEXTH(t *testing.T) {
	data := buildMOBI(t, "Header Name", 9, []exthRecord{
		{exthAuthor, "Test Author"},
		{exthPublisher, "Test Press"},
		{exthSubject, "Science Fiction"},
		{exthPublishDate, "2010-05-01"},
		{exthUpdatedTitle, "Updated Title"},
		{exthLanguage, "ja"},
	})
	path := writeMOBI(t, data)

	parsed, err := Parse(path)
	require.NoError(t, err)

	// The EXTH updated title beats the header full name.
	assert.Equal(t, "Updated Title", parsed.Title)
	assert.Equal(t, []string{"Test Author"}, parsed.Authors)
	assert.Equal(t, "Test Press", parsed.Publisher)
	assert.Equal(t, []string{"Science Fiction"}, parsed.Tags)
	assert.Equal(t, "ja", parsed.LangCode)
	assert.Equal(t, models.DataSourceEmbedded, parsed.DataSource)
	require.NotNil(t, parsed.PubDate)
	assert.Equal(t, models.YearMonth{Year: 2010, Month: 5}, *parsed.PubDate)
}

func TestParseWithoutEXTH(t *testing.T) {
	data := buildMOBI(t, "涼宮ハルヒの憂鬱", 17, nil)
	path := writeMOBI(t, data)

	parsed, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "涼宮ハルヒの憂鬱", parsed.Title)
	assert.Equal(t, "ja", parsed.LangCode)
	assert.Empty(t, parsed.Authors)
}

func TestParseUnknownLocale(t *testing.T) {
	data := buildMOBI(t, "Some Book", 12, nil)
	path := writeMOBI(t, data)

	parsed, err := Parse(path)
	require.NoError(t, err)
	assert.Empty(t, parsed.LangCode)
}

func TestParseRejectsNonMOBI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.mobi")
	require.NoError(t, os.WriteFile(path, make([]byte, 200), 0o644))

	_, err := Parse(path)
	assert.Error(t, err)
}

func TestParseRejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.mobi")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0o644))

	_, err := Parse(path)
	assert.Error(t, err)
}
