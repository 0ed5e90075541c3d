package classify

import (
	"fmt"
	"math"
	"sort"

	"reshelve/internal/library"
)

// Structure types reported by ComplianceScore.
const (
	StructureFlat        = "flat"
	StructureCategorized = "categorized"
	StructureLegacy      = "legacy"
	StructureMixed       = "mixed"
	StructureUnknown     = "unknown"
)

const (
	namingWeight      = 40.0
	placementWeight   = 40.0
	consistencyWeight = 20.0
	consistencyCost   = 5.0
)

// Score is the compliance of an artist folder.
type Score struct {
	StructureType string   `json:"structure_type"`
	Score         int      `json:"score"`
	Albums        int      `json:"albums"`
	Issues        []string `json:"issues,omitempty"`
}

// ComplianceScore classifies the artist folder's layout and scores it against
// the preferred layout.
func (c *Classifier) ComplianceScore(artistPath string) (Score, error) {
	listing, err := c.lister.Scan(artistPath)
	if err != nil {
		return Score{}, err
	}
	return c.ScoreListing(listing), nil
}

// ScoreListing scores an already scanned artist folder.
func (c *Classifier) ScoreListing(listing *library.Listing) Score {
	albums := listing.Albums
	score := Score{StructureType: DetectStructure(albums, c.cats), Albums: len(albums)}
	if len(albums) == 0 {
		return score
	}

	var yeared, placed int
	var issues []string
	for _, album := range albums {
		parsed := library.ParseFolderName(album.Name, c.cats)
		if parsed.HasYear() {
			yeared++
		}
		categorized := album.Category != ""
		if categorized == (c.preferredLayout == StructureCategorized) {
			placed++
		}
		if categorized && parsed.CategoryHint != "" && parsed.CategoryHint != album.Category {
			issues = append(issues, fmt.Sprintf("%s: named %s but filed under %s", album.ID, parsed.CategoryHint, album.Category))
		}
	}
	for canonical, folder := range listing.CategoryFolders {
		if folder.Albums == 0 {
			issues = append(issues, fmt.Sprintf("empty category folder %s", canonical))
		}
	}
	for _, name := range listing.LooseFiles {
		issues = append(issues, fmt.Sprintf("stray file %s at the artist root", name))
	}

	sort.Strings(issues)

	total := float64(len(albums))
	naming := namingWeight * float64(yeared) / total
	placement := placementWeight * float64(placed) / total
	consistency := math.Max(0, consistencyWeight-consistencyCost*float64(len(issues)))
	score.Score = int(math.Round(naming + placement + consistency))
	score.Issues = issues
	return score
}

// DetectStructure reports the layout kind of a set of albums: categorized when
// every album sits in a category folder, flat when every album sits at the root
// with a year prefix, legacy when root albums lack years, mixed otherwise.
func DetectStructure(albums []library.Album, cats *library.Categories) string {
	if len(albums) == 0 {
		return StructureUnknown
	}
	var rooted, categorized, unyeared int
	for _, album := range albums {
		if album.Category != "" {
			categorized++
			continue
		}
		rooted++
		if !library.ParseFolderName(album.Name, cats).HasYear() {
			unyeared++
		}
	}
	switch {
	case rooted == 0:
		return StructureCategorized
	case categorized > 0:
		return StructureMixed
	case unyeared > 0:
		return StructureLegacy
	default:
		return StructureFlat
	}
}
