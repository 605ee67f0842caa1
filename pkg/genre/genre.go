// Package genre assigns each book a category key within its language.
// Categories are keyword-driven: Japanese books match against publisher
// imprints and tags, English books against tags only. Chinese books are
// not subdivided.
package genre

import (
	"sort"
	"strings"

	"github.com/hondana-dev/hondana/pkg/config"
	"github.com/hondana-dev/hondana/pkg/models"
)

// Japanese category keys.
const (
	CategoryLightNovel   = "light_novel"
	CategoryMystery      = "mystery"
	CategorySciFiFantasy = "scifi_fantasy"
	CategoryLiterature   = "literature"
	CategoryOther        = "other"
)

// English category keys.
const (
	CategoryClassics   = "classics"
	CategoryFiction    = "fiction"
	CategoryNonFiction = "non_fiction"

	// SubcategoryGeneral is the fiction sub-category for books tagged as
	// fiction without a more specific match.
	SubcategoryGeneral = "general"
)

var mysteryTags = []string{"mystery", "detective", "ミステリー", "推理"}
var sciFiFantasyTags = []string{"science fiction", "fantasy", "sf", "ファンタジー"}
var literatureTags = []string{"literary", "文芸", "純文学", "文学"}

// Classification is one book's category assignment. Subcategory is only
// set for English fiction.
type Classification struct {
	Category    string
	Subcategory string
}

type Classifier struct {
	lightNovelKeywords []string
	fictionTags        map[string][]string
}

func NewClassifier(cfg *config.UserConfig) *Classifier {
	return &Classifier{
		lightNovelKeywords: cfg.LightNovelKeywords,
		fictionTags:        cfg.FictionTags,
	}
}

// Classify assigns a category based on the book's normalized language.
// Chinese books get an empty classification.
func (c *Classifier) Classify(meta *models.Metadata) Classification {
	switch meta.Language {
	case models.LanguageJapanese:
		return Classification{Category: c.classifyJapanese(meta.Tags, meta.Publisher)}
	case models.LanguageEnglish:
		category, subcategory := c.classifyEnglish(meta.Tags)
		return Classification{Category: category, Subcategory: subcategory}
	default:
		return Classification{}
	}
}

func (c *Classifier) classifyJapanese(tags []string, publisher string) string {
	tagsLower := lowerAll(tags)
	publisherLower := strings.ToLower(publisher)

	// Light novel imprints can show up in either the publisher name or
	// the tags, so match both as substrings.
	for _, keyword := range c.lightNovelKeywords {
		kw := strings.ToLower(keyword)
		if publisherLower != "" && strings.Contains(publisherLower, kw) {
			return CategoryLightNovel
		}
		for _, tag := range tagsLower {
			if strings.Contains(tag, kw) {
				return CategoryLightNovel
			}
		}
	}

	if containsAny(tagsLower, mysteryTags) {
		return CategoryMystery
	}
	if containsAny(tagsLower, sciFiFantasyTags) {
		return CategorySciFiFantasy
	}
	if containsAny(tagsLower, literatureTags) {
		return CategoryLiterature
	}

	return CategoryOther
}

func (c *Classifier) classifyEnglish(tags []string) (string, string) {
	tagsLower := lowerAll(tags)

	if containsAny(tagsLower, []string{"classics", "classic"}) {
		return CategoryClassics, ""
	}

	// Sub-categories are checked in sorted order so that a book matching
	// several keyword lists always lands in the same folder.
	subcategories := make([]string, 0, len(c.fictionTags))
	for subcategory := range c.fictionTags {
		subcategories = append(subcategories, subcategory)
	}
	sort.Strings(subcategories)

	for _, subcategory := range subcategories {
		for _, keyword := range c.fictionTags[subcategory] {
			kw := strings.ToLower(keyword)
			for _, tag := range tagsLower {
				if strings.Contains(tag, kw) {
					return CategoryFiction, subcategory
				}
			}
		}
	}

	if containsAny(tagsLower, []string{"fiction", "novel"}) {
		return CategoryFiction, SubcategoryGeneral
	}

	return CategoryNonFiction, ""
}

func lowerAll(values []string) []string {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(v)
	}
	return lowered
}

func containsAny(haystack []string, needles []string) bool {
	for _, h := range haystack {
		for _, n := range needles {
			if h == n {
				return true
			}
		}
	}
	return false
}
