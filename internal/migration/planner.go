package migration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reshelve/internal/classify"
	"reshelve/internal/library"
	"reshelve/internal/logging"
	"reshelve/internal/metadata"
)

// PlanRequest asks for a plan for one artist.
type PlanRequest struct {
	ArtistID string `json:"artist_id"`
	Kind     Kind   `json:"migration_kind"`
	// Overrides maps album ids or folder names to a category.
	Overrides map[string]string `json:"overrides,omitempty"`
	// Excludes lists album ids or folder names to leave out of the plan.
	Excludes []string `json:"excludes,omitempty"`
}

// Planner turns a PlanRequest and the current listing into a Plan.
type Planner struct {
	lister        AlbumLister
	classifier    Classifier
	metadata      MetadataStore
	cats          *library.Categories
	minConfidence float64
	explicitDirs  bool
	workers       int
	logger        *slog.Logger
	now           func() time.Time
}

// PlannerOptions tunes classification and directory handling.
type PlannerOptions struct {
	MinConfidence float64
	ExplicitDirs  bool
	Workers       int
}

// NewPlanner builds a planner over the given collaborators.
func NewPlanner(lister AlbumLister, classifier Classifier, store MetadataStore, cats *library.Categories, opts PlannerOptions, logger *slog.Logger) *Planner {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Planner{
		lister:        lister,
		classifier:    classifier,
		metadata:      store,
		cats:          cats,
		minConfidence: opts.MinConfidence,
		explicitDirs:  opts.ExplicitDirs,
		workers:       workers,
		logger:        logging.NewComponentLogger(logger, "planner"),
		now:           time.Now,
	}
}

// albumInput is one album with everything needed to compute its target.
type albumInput struct {
	album      library.Album
	parsed     library.FolderName
	override   string
	result     classify.Result
	classified bool
}

// Build produces the plan for req. Only an artist folder that cannot be
// enumerated fails; every other problem becomes a warning.
func (p *Planner) Build(ctx context.Context, artistPath string, req PlanRequest) (*Plan, error) {
	logger := logging.WithContext(ctx, p.logger)
	plan := &Plan{
		ID:         uuid.NewString(),
		ArtistID:   req.ArtistID,
		ArtistPath: artistPath,
		Kind:       req.Kind,
		CreatedAt:  p.now().UTC(),
		Operations: []Operation{},
	}

	listing, err := p.lister.Scan(artistPath)
	if err != nil {
		return nil, &Error{
			Class:    ClassPlanning,
			ArtistID: req.ArtistID,
			Path:     artistPath,
			Message:  "artist folder cannot be enumerated",
			Err:      err,
		}
	}
	plan.Structure = classify.DetectStructure(listing.Albums, p.cats)

	// Excludes match album ids and names after case and accent folding.
	excluded := make(map[string]string, len(req.Excludes))
	for _, value := range req.Excludes {
		if value = strings.TrimSpace(value); value != "" {
			excluded[library.Fold(value)] = value
		}
	}
	overrides, warnings := p.resolveOverrides(req.Overrides, listing.Albums)
	plan.Warnings = append(plan.Warnings, warnings...)
	if len(overrides) > 0 {
		plan.Overrides = overrides
	}

	inputs := make([]*albumInput, 0, len(listing.Albums))
	for _, album := range listing.Albums {
		if matchesAlbum(excluded, album) {
			plan.Excluded = append(plan.Excluded, album.ID)
			continue
		}
		input := &albumInput{album: album, parsed: library.ParseFolderName(album.Name, p.cats)}
		if cat, ok := lookupAlbum(overrides, album); ok {
			input.override = cat
		}
		inputs = append(inputs, input)
	}
	for _, value := range excluded {
		if !containsAlbum(listing.Albums, value) {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("excluded album %q not found", value))
		}
	}
	sort.Strings(plan.Warnings)

	if err := p.classifyAll(ctx, req.Kind, inputs); err != nil {
		return nil, err
	}
	doc := p.readMetadata(req.ArtistID, plan)

	for _, input := range inputs {
		plan.Operations = append(plan.Operations, p.operationFor(req.Kind, input, listing, doc))
	}
	p.holdOccupiedCategoryFolders(plan.Operations, listing)
	resolveCollisions(plan.Operations)
	if p.explicitDirs {
		plan.Operations = withCreateDirs(plan.Operations, artistPath)
	}

	switch {
	case len(listing.Albums) == 0:
		plan.Warnings = append(plan.Warnings, "no albums found in artist folder")
	case plan.Mutating() == 0:
		plan.Warnings = append(plan.Warnings,
			fmt.Sprintf("%s does not apply to the current %s layout; nothing to move", req.Kind, plan.Structure))
	case plan.Structure == classify.StructureMixed && req.Kind == FlatToCategorized:
		plan.Warnings = append(plan.Warnings, "layout is mixed; albums already in category folders stay in place")
	}

	logger.Info("migration plan built",
		logging.String("migration_kind", string(req.Kind)),
		logging.String("structure", plan.Structure),
		logging.Int("operations", len(plan.Operations)),
		logging.Int("moves", plan.Moves()),
		logging.Int("excluded", len(plan.Excluded)),
		logging.Int("warnings", len(plan.Warnings)),
	)
	return plan, nil
}

func (p *Planner) resolveOverrides(raw map[string]string, albums []library.Album) (map[string]string, []string) {
	var warnings []string
	resolved := make(map[string]string, len(raw))
	for album, label := range raw {
		album = strings.TrimSpace(album)
		canonical, ok := p.cats.Canonical(label)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("override for %q ignored: unknown category %q", album, label))
			continue
		}
		if !containsAlbum(albums, album) {
			warnings = append(warnings, fmt.Sprintf("override for %q ignored: album not found", album))
			continue
		}
		resolved[album] = canonical
	}
	return resolved, warnings
}

// classifyAll runs the read-only classifier over root-level albums in
// parallel. Only kinds that file albums into categories need it.
func (p *Planner) classifyAll(ctx context.Context, kind Kind, inputs []*albumInput) error {
	if kind != FlatToCategorized && kind != MixedToCategorized {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, input := range inputs {
		input := input
		if input.album.Category != "" || input.override != "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			input.result = p.classifier.Classify(input.album.Path, input.album.Name)
			input.classified = true
			return nil
		})
	}
	return g.Wait()
}

func (p *Planner) readMetadata(artistID string, plan *Plan) *metadata.Document {
	if p.metadata == nil {
		return nil
	}
	doc, err := p.metadata.Read(artistID)
	if err != nil {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("metadata unavailable: %v", err))
		logging.WarnWithContext(p.logger, "metadata read failed", "metadata_read_failed",
			logging.String(logging.FieldArtist, artistID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "release years only come from folder names"),
			logging.String(logging.FieldErrorHint, "fix or remove the artist metadata document"),
		)
		return nil
	}
	return doc
}

func (p *Planner) operationFor(kind Kind, input *albumInput, listing *library.Listing, doc *metadata.Document) Operation {
	album := input.album
	op := Operation{
		AlbumID:    album.ID,
		SourcePath: album.RelPath,
		TargetPath: album.RelPath,
		Kind:       OpNoOp,
		Status:     StatusPending,
	}
	name := input.parsed
	if !name.HasYear() {
		if rec, ok := doc.Lookup(album.ID, album.Name); ok && rec.Year > 0 {
			name.Year = rec.Year
		}
	}

	switch kind {
	case FlatToCategorized, MixedToCategorized:
		if album.Category != "" {
			op.CategoryUsed = album.Category
			break
		}
		category, confidence, warning := p.chooseCategory(input)
		op.CategoryUsed = category
		op.Confidence = confidence
		if warning != "" {
			op.Warnings = append(op.Warnings, warning)
		}
		op.TargetPath = path.Join(categoryFolder(listing, category), name.Format(""))

	case UnyearedToDefault:
		if input.parsed.YearPrefixed {
			break
		}
		if !name.HasYear() {
			op.Warnings = append(op.Warnings, "no release year in folder name or metadata; left unchanged")
			break
		}
		op.CategoryUsed = album.Category
		op.TargetPath = path.Join(path.Dir(album.RelPath), name.Format(name.CategoryHint))

	case CategorizedToFlat:
		if album.Category == "" {
			break
		}
		category := album.Category
		if input.override != "" {
			category = input.override
		}
		op.CategoryUsed = category
		// The default category is implied by a bare name, so only an
		// inline hint the folder already carried is kept.
		suffix := category
		if p.cats.IsDefault(category) {
			suffix = name.CategoryHint
		}
		op.TargetPath = name.Format(suffix)
	}

	if op.TargetPath != op.SourcePath {
		op.Kind = OpMove
	}
	return op
}

func (p *Planner) chooseCategory(input *albumInput) (string, float64, string) {
	if input.override != "" {
		return input.override, 1, ""
	}
	if !input.classified {
		return p.cats.Default(), 0, "not classified; using default category"
	}
	res := input.result
	if res.Confidence < p.minConfidence {
		return p.cats.Default(), res.Confidence, fmt.Sprintf(
			"low confidence %s (%.2f, %s); using %s", res.Category, res.Confidence, res.Reason, p.cats.Default())
	}
	return res.Category, res.Confidence, ""
}

// categoryFolder reuses an existing on-disk spelling of the category folder.
func categoryFolder(listing *library.Listing, category string) string {
	if existing, ok := listing.CategoryFolders[category]; ok && existing.Name != "" {
		return existing.Name
	}
	return category
}

// holdOccupiedCategoryFolders turns into no-ops every move whose target lies
// under a root album folder named like a category ("Live" holding tracks).
// Renaming that album into its own name, or filing other albums inside it,
// would nest folders into an album.
func (p *Planner) holdOccupiedCategoryFolders(ops []Operation, listing *library.Listing) {
	occupied := map[string]string{}
	for _, album := range listing.Albums {
		if album.Category != "" || strings.Contains(album.RelPath, "/") {
			continue
		}
		if _, ok := p.cats.FolderName(album.Name); ok {
			occupied[strings.ToLower(album.Name)] = album.Name
		}
	}
	if len(occupied) == 0 {
		return
	}
	for i := range ops {
		op := &ops[i]
		if op.Kind != OpMove {
			continue
		}
		top, _, nested := strings.Cut(op.TargetPath, "/")
		if !nested {
			continue
		}
		folder, ok := occupied[strings.ToLower(top)]
		if !ok {
			continue
		}
		op.Warnings = append(op.Warnings, fmt.Sprintf(
			"category folder %q is an album folder; rename that album before filing into %q", folder, top))
		op.TargetPath = op.SourcePath
		op.Kind = OpNoOp
	}
}

// resolveCollisions gives duplicate targets " (2)", " (3)" suffixes. Albums
// keep their name in name order; the later ones are renamed and warned.
func resolveCollisions(ops []Operation) {
	taken := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if op.Kind != OpMove {
			taken[collisionKey(op.TargetPath)] = struct{}{}
		}
	}

	order := make([]int, 0, len(ops))
	for i, op := range ops {
		if op.Kind == OpMove {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		left, right := ops[order[a]], ops[order[b]]
		if nl, nr := path.Base(left.SourcePath), path.Base(right.SourcePath); nl != nr {
			return nl < nr
		}
		return left.SourcePath < right.SourcePath
	})

	for _, i := range order {
		op := &ops[i]
		key := collisionKey(op.TargetPath)
		if _, clash := taken[key]; !clash {
			taken[key] = struct{}{}
			continue
		}
		original := op.TargetPath
		for n := 2; ; n++ {
			candidate := original + " (" + strconv.Itoa(n) + ")"
			if _, clash := taken[collisionKey(candidate)]; !clash {
				op.TargetPath = candidate
				taken[collisionKey(candidate)] = struct{}{}
				break
			}
		}
		op.Warnings = append(op.Warnings, fmt.Sprintf("target %q already planned for another album; renamed to %q", original, op.TargetPath))
		if op.TargetPath == op.SourcePath {
			op.Kind = OpNoOp
		}
	}
}

func collisionKey(rel string) string {
	return strings.ToLower(rel)
}

// withCreateDirs prepends create_dir operations for target parents that do
// not exist yet.
func withCreateDirs(ops []Operation, artistPath string) []Operation {
	seen := map[string]struct{}{}
	var dirs []string
	for _, op := range ops {
		if op.Kind != OpMove {
			continue
		}
		parent := path.Dir(op.TargetPath)
		if parent == "." {
			continue
		}
		if _, ok := seen[parent]; ok {
			continue
		}
		seen[parent] = struct{}{}
		if info, err := os.Stat(filepath.Join(artistPath, filepath.FromSlash(parent))); err == nil && info.IsDir() {
			continue
		}
		dirs = append(dirs, parent)
	}
	sort.Strings(dirs)
	out := make([]Operation, 0, len(ops)+len(dirs))
	for _, dir := range dirs {
		out = append(out, Operation{TargetPath: dir, Kind: OpCreateDir, Status: StatusPending, CategoryUsed: path.Base(dir)})
	}
	return append(out, ops...)
}

func matchesAlbum(folded map[string]string, album library.Album) bool {
	if _, ok := folded[library.Fold(album.ID)]; ok {
		return true
	}
	_, ok := folded[library.Fold(album.Name)]
	return ok
}

// sameAlbum reports whether value names album by id or folder name, ignoring
// case and accents.
func sameAlbum(album library.Album, value string) bool {
	key := library.Fold(value)
	return key != "" && (library.Fold(album.ID) == key || library.Fold(album.Name) == key)
}

func lookupAlbum(values map[string]string, album library.Album) (string, bool) {
	if v, ok := values[album.ID]; ok {
		return v, true
	}
	if v, ok := values[album.Name]; ok {
		return v, true
	}
	for key, v := range values {
		if sameAlbum(album, key) {
			return v, true
		}
	}
	return "", false
}

func containsAlbum(albums []library.Album, value string) bool {
	for _, album := range albums {
		if sameAlbum(album, value) {
			return true
		}
	}
	return false
}
