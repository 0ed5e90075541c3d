package classify

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"reshelve/internal/library"
)

// Confidence levels reported by Classify.
const (
	ConfidenceHint    = 0.95
	ConfidenceKeyword = 0.85
	ConfidenceDefault = 0.6
	// Track-count guesses sit below the default minimum confidence so they
	// surface as suggestions rather than silently recategorizing albums.
	ConfidenceSingle = 0.45
	ConfidenceEP     = 0.4
)

// Result is the category assigned to one album.
type Result struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type keywordRule struct {
	category string
	pattern  *regexp.Regexp
}

var keywordRules = []keywordRule{
	{"Live", regexp.MustCompile(`\b(live|concert|unplugged)\b`)},
	{"Compilation", regexp.MustCompile(`\b(greatest hits|best of|anthology|collection|essentials?|retrospective)\b`)},
	{"Soundtrack", regexp.MustCompile(`\b(soundtrack|ost|original score|music from)\b`)},
	{"Remix", regexp.MustCompile(`\b(remix|remixes|remixed)\b`)},
	{"Demo", regexp.MustCompile(`\bdemos?\b`)},
	{"Bootleg", regexp.MustCompile(`\bbootleg\b`)},
	{"EP", regexp.MustCompile(`\bep\b`)},
	{"Single", regexp.MustCompile(`\bsingle\b`)},
}

// Classifier implements the classification collaborator.
type Classifier struct {
	cats            *library.Categories
	lister          *library.Lister
	preferredLayout string
}

// New builds a classifier for the given category set. preferredLayout is
// "categorized" or "flat".
func New(cats *library.Categories, preferredLayout string) *Classifier {
	if preferredLayout == "" {
		preferredLayout = StructureCategorized
	}
	return &Classifier{cats: cats, lister: library.NewLister(cats), preferredLayout: preferredLayout}
}

// Categories returns the category set used for classification.
func (c *Classifier) Categories() *library.Categories {
	return c.cats
}

// Classify assigns a category to the album at albumPath named name.
func (c *Classifier) Classify(albumPath, name string) Result {
	parsed := library.ParseFolderName(name, c.cats)
	if parsed.CategoryHint != "" {
		return Result{Category: parsed.CategoryHint, Confidence: ConfidenceHint, Reason: "category hint in folder name"}
	}

	folded := library.Fold(parsed.Title + " " + parsed.Edition())
	for _, rule := range keywordRules {
		canonical, ok := c.cats.Canonical(rule.category)
		if !ok {
			continue
		}
		if rule.pattern.MatchString(folded) {
			return Result{Category: canonical, Confidence: ConfidenceKeyword, Reason: "title keyword"}
		}
	}

	if albumPath != "" {
		tracks := countAudioFiles(albumPath)
		if canonical, ok := c.cats.Canonical("Single"); ok && tracks > 0 && tracks <= 2 {
			return Result{Category: canonical, Confidence: ConfidenceSingle, Reason: "one or two tracks"}
		}
		if canonical, ok := c.cats.Canonical("EP"); ok && tracks >= 3 && tracks <= 6 {
			return Result{Category: canonical, Confidence: ConfidenceEP, Reason: "three to six tracks"}
		}
	}

	return Result{Category: c.cats.Default(), Confidence: ConfidenceDefault, Reason: "default category"}
}

func countAudioFiles(dir string) int {
	count := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() && isAudio(path) {
			count++
		}
		return nil
	})
	return count
}

func isAudio(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac", ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".aiff", ".aif", ".ape", ".wv", ".wma", ".alac", ".dsf":
		return true
	}
	return false
}
