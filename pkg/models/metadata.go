package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Language is one of the closed set of normalized languages. Raw codes
// never appear on Metadata; the classifier folds everything into these.
type Language string

const (
	LanguageJapanese Language = "jpn"
	LanguageEnglish  Language = "eng"
	LanguageChinese  Language = "zho"
)

const (
	DataSourceCalibre  = "calibre"
	DataSourceEmbedded = "embedded"
	DataSourceFilename = "filename"
	DataSourceDirname  = "dirname"
)

// DataSourcePriority orders metadata sources from most to least trusted.
// Lower is better.
var DataSourcePriority = map[string]int{
	DataSourceCalibre:  1,
	DataSourceEmbedded: 2,
	DataSourceFilename: 3,
	DataSourceDirname:  4,
}

// YearMonth is a publication date at year-month granularity.
type YearMonth struct {
	Year  int
	Month int
}

// ParseYearMonth extracts a YearMonth from a date string such as
// "2009-04-17 00:00:00+00:00" or "2009-04". Returns nil when the string
// has no usable year.
func ParseYearMonth(s string) *YearMonth {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	datePart := strings.Fields(s)[0]
	datePart = strings.SplitN(datePart, "T", 2)[0]
	parts := strings.Split(datePart, "-")

	year, err := strconv.Atoi(parts[0])
	if err != nil || year <= 0 {
		return nil
	}
	// Calibre stores books with no real date as year 0101.
	if year < 1000 {
		return nil
	}

	month := 1
	if len(parts) > 1 {
		if m, err := strconv.Atoi(parts[1]); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	return &YearMonth{Year: year, Month: month}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// MinYearMonth returns the earlier of a and b, treating nil as "no date".
func MinYearMonth(a, b *YearMonth) *YearMonth {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Before(*a) {
		return b
	}
	return a
}

// Metadata is the normalized view of one book. Produced once by the
// resolver and immutable afterwards.
type Metadata struct {
	Language     Language
	Author       string
	AuthorKey    string
	Series       string
	SeriesNumber *float64
	Title        string
	Tags         []string
	Publisher    string
	PubDate      *YearMonth

	// Source records which resolver stage produced the core fields, one
	// of the DataSource constants.
	Source string
}
