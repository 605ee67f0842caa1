// Package mobi extracts metadata from MOBI and AZW3 files. Both are
// Palm database containers whose first record carries a MOBI header and,
// usually, an EXTH metadata block; this parser reads only those headers
// and never decodes book text.
package mobi

import (
	"encoding/binary"
	"os"
	"strings"

	"github.com/hondana-dev/hondana/pkg/mediafile"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/pkg/errors"
)

const (
	palmHeaderSize   = 78
	palmRecordSize   = 8
	mobiHeaderStart  = 16 // record 0 begins with a 16-byte PalmDOC header
	exthFlagOffset   = 128
	exthFlagPresent  = 0x40
	maxRecordZeroLen = 1 << 20
)

// EXTH record types carrying the fields we care about.
const (
	exthAuthor       = 100
	exthPublisher    = 101
	exthSubject      = 105
	exthPublishDate  = 106
	exthUpdatedTitle = 503
	exthLanguage     = 524
)

// mobiLocaleLanguages maps the low byte of the MOBI header locale to an
// ISO language code. Only the languages the organizer distinguishes are
// listed; everything else stays empty and falls through to the script
// heuristics.
var mobiLocaleLanguages = map[byte]string{
	4:  "zh",
	9:  "en",
	17: "ja",
}

// Parse reads the MOBI/EXTH headers of a .mobi or .azw3 file.
func Parse(path string) (*mediafile.Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	header := make([]byte, palmHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return nil, errors.Wrap(err, "short palm header")
	}

	dbType := string(header[60:68])
	if dbType != "BOOKMOBI" {
		return nil, errors.Errorf("not a mobi container: %q", dbType)
	}

	numRecords := binary.BigEndian.Uint16(header[76:78])
	if numRecords == 0 {
		return nil, errors.New("palm database has no records")
	}

	recordList := make([]byte, int(numRecords)*palmRecordSize)
	if _, err := f.ReadAt(recordList, palmHeaderSize); err != nil {
		return nil, errors.Wrap(err, "short record list")
	}

	record0Start := int64(binary.BigEndian.Uint32(recordList[0:4]))
	var record0End int64
	if numRecords > 1 {
		record0End = int64(binary.BigEndian.Uint32(recordList[palmRecordSize : palmRecordSize+4]))
	} else {
		stats, err := f.Stat()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		record0End = stats.Size()
	}
	if record0End <= record0Start || record0End-record0Start > maxRecordZeroLen {
		return nil, errors.New("implausible record 0 bounds")
	}

	record0 := make([]byte, record0End-record0Start)
	if _, err := f.ReadAt(record0, record0Start); err != nil {
		return nil, errors.Wrap(err, "short record 0")
	}

	return parseRecordZero(record0)
}

func parseRecordZero(record0 []byte) (*mediafile.Parsed, error) {
	if len(record0) < mobiHeaderStart+exthFlagOffset+4 {
		return nil, errors.New("record 0 too small for mobi header")
	}
	mobiHeader := record0[mobiHeaderStart:]
	if string(mobiHeader[0:4]) != "MOBI" {
		return nil, errors.New("missing MOBI header magic")
	}

	headerLength := binary.BigEndian.Uint32(mobiHeader[4:8])

	parsed := &mediafile.Parsed{DataSource: models.DataSourceEmbedded}

	// The full book name lives outside the header, addressed relative to
	// the start of record 0.
	nameOffset := binary.BigEndian.Uint32(mobiHeader[84:88])
	nameLength := binary.BigEndian.Uint32(mobiHeader[88:92])
	if end := int(nameOffset + nameLength); int(nameOffset) < end && end <= len(record0) {
		parsed.Title = strings.TrimSpace(string(record0[nameOffset:end]))
	}

	locale := binary.BigEndian.Uint32(mobiHeader[92:96])
	parsed.LangCode = mobiLocaleLanguages[byte(locale)]

	exthFlags := binary.BigEndian.Uint32(mobiHeader[exthFlagOffset : exthFlagOffset+4])
	if exthFlags&exthFlagPresent != 0 {
		exthStart := mobiHeaderStart + int(headerLength)
		if exthStart < len(record0) {
			applyEXTH(record0[exthStart:], parsed)
		}
	}

	return parsed, nil
}

// applyEXTH walks the EXTH record block, filling in whatever fields it
// carries. Malformed blocks are abandoned silently; whatever was parsed
// up to that point stands.
func applyEXTH(exth []byte, parsed *mediafile.Parsed) {
	if len(exth) < 12 || string(exth[0:4]) != "EXTH" {
		return
	}
	recordCount := binary.BigEndian.Uint32(exth[8:12])

	pos := 12
	for i := uint32(0); i < recordCount; i++ {
		if pos+8 > len(exth) {
			return
		}
		recType := binary.BigEndian.Uint32(exth[pos : pos+4])
		recLen := int(binary.BigEndian.Uint32(exth[pos+4 : pos+8]))
		if recLen < 8 || pos+recLen > len(exth) {
			return
		}
		data := strings.TrimSpace(string(exth[pos+8 : pos+recLen]))
		pos += recLen
		if data == "" {
			continue
		}

		switch recType {
		case exthAuthor:
			parsed.Authors = append(parsed.Authors, data)
		case exthPublisher:
			parsed.Publisher = data
		case exthSubject:
			parsed.Tags = append(parsed.Tags, data)
		case exthPublishDate:
			parsed.PubDate = models.ParseYearMonth(data)
		case exthUpdatedTitle:
			// The updated title beats the header full name.
			parsed.Title = data
		case exthLanguage:
			parsed.LangCode = data
		}
	}
}
