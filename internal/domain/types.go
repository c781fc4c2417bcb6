package domain

// UnitKind distinguishes the two information-unit variants of a package.
type UnitKind string

const (
	KindDocument UnitKind = "Document"
	KindTopic    UnitKind = "Topic"
)

// LifecycleStatus is the optional content lifecycle status of a unit.
type LifecycleStatus struct {
	Value string
	Date  string
}

// Package is the root entity of one ingested archive.
type Package struct {
	IRI string
}

// Unit is a documented topic or document header extracted from the
// metadata graph, together with its resolved facet relationship sets.
type Unit struct {
	IRI             string
	Label           string
	Language        string
	Kind            UnitKind
	Status          LifecycleStatus
	DocTypes        []string
	ProductVariants []string
	Components      []string
	Roles           []string
	Subjects        []string
	Phases          []string
}

// Rendition is one physical content artifact belonging to a unit.
// SourcePath is the archive-relative path and acts as the natural key
// in the graph store. Format may be empty when the metadata does not
// declare one.
type Rendition struct {
	ParentIRI  string
	SourcePath string
	Format     string
}

// GraphData is the normalized result of parsing one metadata document.
// Package may be nil when the graph declares none.
type GraphData struct {
	Package    *Package
	Documents  []Unit
	Topics     []Unit
	Renditions []Rendition
}

// Units returns documents followed by topics.
func (g *GraphData) Units() []Unit {
	units := make([]Unit, 0, len(g.Documents)+len(g.Topics))
	units = append(units, g.Documents...)
	units = append(units, g.Topics...)
	return units
}

// ChunkNode is the graph-side record of an indexed chunk.
type ChunkNode struct {
	ChunkID   string
	Path      string
	StartChar int
	EndChar   int
	ParentIRI string
}

// ChunkPoint is one chunk prepared for the vector store: content-addressed
// id, chunk text, scalar metadata and (once computed) the embedding vector.
type ChunkPoint struct {
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// SearchHit is one ranked result from the vector store. Distance is the
// store-native similarity measure normalized so that lower means closer.
type SearchHit struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float32
}

// Citation points a hit back to its parent unit and rendition path.
type Citation struct {
	ParentIRI string `json:"parent_iri"`
	Path      string `json:"path"`
}

// IngestSummary reports what one package ingestion committed.
type IngestSummary struct {
	Package        string `json:"package"`
	Topics         int    `json:"topics"`
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	RenditionsSeen int    `json:"renditions_seen"`
}

// FacetAttrs are the facet attribute sets cached per parent unit and
// denormalized into chunk metadata.
type FacetAttrs struct {
	ProductVariants []string
	Components      []string
	Roles           []string
	DocTypes        []string
}

// FacetFilters restricts candidate units by facet relationship targets.
// Empty slices place no constraint for that facet kind.
type FacetFilters struct {
	ProductVariants []string
	Components      []string
	Roles           []string
	DocTypes        []string
	Subjects        []string
	Phases          []string
}

// Empty reports whether no facet kind carries a constraint.
func (f FacetFilters) Empty() bool {
	return len(f.ProductVariants) == 0 && len(f.Components) == 0 &&
		len(f.Roles) == 0 && len(f.DocTypes) == 0 &&
		len(f.Subjects) == 0 && len(f.Phases) == 0
}

// FilterClause matches one metadata key. A non-nil In is a membership
// test (an empty In matches nothing); otherwise Eq is an equality test.
type FilterClause struct {
	Key string
	Eq  string
	In  []string
}

// Filter is a conjunction of clauses evaluated against chunk metadata.
type Filter struct {
	Must []FilterClause
}
