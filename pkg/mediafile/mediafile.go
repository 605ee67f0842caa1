// Package mediafile defines the record shared by the per-format metadata
// extractors. Extractors fill in whatever they can find; every field may
// be empty.
package mediafile

import (
	"strings"

	"github.com/hondana-dev/hondana/pkg/models"
)

type Parsed struct {
	Title        string
	Authors      []string
	LangCode     string
	Publisher    string
	PubDate      *models.YearMonth
	Series       string
	SeriesNumber *float64
	Tags         []string

	// DataSource is one of the models.DataSource constants.
	DataSource string
}

func (p *Parsed) String() string {
	fields := []string{}
	if p.Title != "" {
		fields = append(fields, "title="+p.Title)
	}
	if len(p.Authors) > 0 {
		fields = append(fields, "authors="+strings.Join(p.Authors, ", "))
	}
	if p.LangCode != "" {
		fields = append(fields, "lang="+p.LangCode)
	}
	if p.Series != "" {
		fields = append(fields, "series="+p.Series)
	}
	if p.PubDate != nil {
		fields = append(fields, "pubdate="+p.PubDate.String())
	}
	return strings.Join(fields, " ")
}
