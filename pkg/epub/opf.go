package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hondana-dev/hondana/pkg/mediafile"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/pkg/errors"
)

type OPF struct {
	Title        string
	Authors      []string
	Language     string
	Publisher    string
	Date         string
	Subjects     []string
	Series       string
	SeriesNumber *float64
}

type Package struct {
	XMLName          xml.Name `xml:"package"`
	Text             string   `xml:",chardata"`
	Xmlns            string   `xml:"xmlns,attr"`
	Version          string   `xml:"version,attr"`
	UniqueIdentifier string   `xml:"unique-identifier,attr"`
	Metadata         struct {
		Text  string `xml:",chardata"`
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Description string   `xml:"description"`
		Publisher   string   `xml:"publisher"`
		Date        string   `xml:"date"`
		Language    string   `xml:"language"`
		Subject     []string `xml:"subject"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
}

// Parse reads the OPF metadata out of an EPUB archive.
func Parse(path string) (*mediafile.Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	zipReader, err := zip.NewReader(f, stats.Size())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// The OPF can live anywhere in the archive; the first .opf entry is
	// the package document.
	var opf *OPF
	for _, file := range zipReader.File {
		if filepath.Ext(file.Name) == ".opf" {
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			opf, err = ParseOPF(r)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			break
		}
	}

	if opf == nil {
		return nil, errors.New("no opf file found")
	}

	return &mediafile.Parsed{
		Title:        opf.Title,
		Authors:      opf.Authors,
		LangCode:     opf.Language,
		Publisher:    opf.Publisher,
		PubDate:      models.ParseYearMonth(opf.Date),
		Series:       opf.Series,
		SeriesNumber: opf.SeriesNumber,
		Tags:         opf.Subjects,
		DataSource:   models.DataSourceEmbedded,
	}, nil
}

func ParseOPF(r io.ReadCloser) (*OPF, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	err = xml.Unmarshal(b, pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Parse out meta tags into a more lookup-friendly structure.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.ReplaceAll(m.Refines, "#", "")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = m.Text
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	// Parse out the main title of the book.
	title := ""
	if len(pkg.Metadata.Title) == 1 {
		title = pkg.Metadata.Title[0].Text
	} else if len(pkg.Metadata.Title) > 1 {
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID] != nil && metaProperties[t.ID]["title-type"] == "main" {
				title = t.Text
				break
			}
		}
	}

	authors := []string{}
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" && metaProperties[creator.ID] != nil {
			role = metaProperties[creator.ID]["role"]
		}
		if role == "aut" || role == "" || len(pkg.Metadata.Creator) == 1 {
			authors = append(authors, strings.TrimSpace(creator.Text))
		}
	}

	subjects := []string{}
	for _, s := range pkg.Metadata.Subject {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			subjects = append(subjects, trimmed)
		}
	}

	// Series information comes from calibre meta tags.
	series := metaContent["calibre:series"]
	var seriesNumber *float64
	if seriesIndexStr := metaContent["calibre:series_index"]; seriesIndexStr != "" {
		if num, err := strconv.ParseFloat(seriesIndexStr, 64); err == nil {
			seriesNumber = &num
		}
	}

	return &OPF{
		Title:        strings.TrimSpace(title),
		Authors:      authors,
		Language:     strings.TrimSpace(pkg.Metadata.Language),
		Publisher:    strings.TrimSpace(pkg.Metadata.Publisher),
		Date:         strings.TrimSpace(pkg.Metadata.Date),
		Subjects:     subjects,
		Series:       series,
		SeriesNumber: seriesNumber,
	}, nil
}
