// Package neo4j persists the metadata graph in a Neo4j database using
// MERGE-by-natural-key statements, mirroring the schema described in
// the graphstore package.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"iirdsrag/internal/domain"
)

// Config holds connection parameters for the Neo4j store.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	// ConnectTimeout bounds the reconnect-retry window during
	// initialization. Defaults to 30s.
	ConnectTimeout time.Duration
}

// Store is a graphstore.Store backed by Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewStore connects to Neo4j, retrying with fixed backoff until the
// configured deadline. Past the deadline it fails with a
// domain.ErrStoreUnavailable wrap.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		cfg.URI = "bolt://localhost:7687"
	}
	if cfg.Username == "" {
		cfg.Username = "neo4j"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(cfg.ConnectTimeout)
	var lastErr error
	for {
		lastErr = driver.VerifyConnectivity(ctx)
		if lastErr == nil {
			return &Store{driver: driver, database: cfg.Database}, nil
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			_ = driver.Close(ctx)
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	_ = driver.Close(ctx)
	return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, lastErr)
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// EnsureSchema creates the uniqueness constraints backing the natural keys.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE CONSTRAINT pkg_iri   IF NOT EXISTS FOR (p:Package)   REQUIRE p.iri IS UNIQUE",
		"CREATE CONSTRAINT doc_iri   IF NOT EXISTS FOR (n:Document)  REQUIRE n.iri IS UNIQUE",
		"CREATE CONSTRAINT topic_iri IF NOT EXISTS FOR (n:Topic)     REQUIRE n.iri IS UNIQUE",
		"CREATE CONSTRAINT rend_src  IF NOT EXISTS FOR (r:Rendition) REQUIRE r.source_path IS UNIQUE",
		"CREATE CONSTRAINT chunk_id  IF NOT EXISTS FOR (c:Chunk)     REQUIRE c.chunk_id IS UNIQUE",
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)
	for _, stmt := range stmts {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// facetRel maps a facet target label to its relationship type.
type facetRel struct {
	label string
	rel   string
}

var facetRels = map[string]facetRel{
	"doc_types":        {"DocType", "APPLIES_TO_DOCUMENT_TYPE"},
	"product_variants": {"ProductVariant", "RELATES_TO_PRODUCT_VARIANT"},
	"components":       {"Component", "RELATES_TO_COMPONENT"},
	"roles":            {"Role", "HAS_ROLE"},
	"subjects":         {"Subject", "HAS_SUBJECT"},
	"phases":           {"LifecyclePhase", "HAS_LIFECYCLE_PHASE"},
}

// UpsertGraph merges the package, its units, their facet targets and
// renditions. Attribute values are overwritten on every call, so the
// last writer wins on overlapping fields.
func (s *Store) UpsertGraph(ctx context.Context, data *domain.GraphData) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	if data.Package != nil {
		if _, err := sess.Run(ctx, "MERGE (p:Package {iri:$iri})", map[string]any{"iri": data.Package.IRI}); err != nil {
			return err
		}
	}

	for _, unit := range data.Units() {
		// Kind is one of two internal constants, safe to interpolate.
		q := fmt.Sprintf(`
			MERGE (n:%s {iri:$iri})
			SET n.label=$label, n.language=$language, n.status_value=$status_value, n.status_date=$status_date
		`, unit.Kind)
		params := map[string]any{
			"iri":          unit.IRI,
			"label":        unit.Label,
			"language":     unit.Language,
			"status_value": unit.Status.Value,
			"status_date":  unit.Status.Date,
		}
		if _, err := sess.Run(ctx, q, params); err != nil {
			return err
		}

		if data.Package != nil {
			_, err := sess.Run(ctx, `
				MATCH (n {iri:$iri}), (p:Package {iri:$piri})
				MERGE (n)-[:PART_OF_PACKAGE]->(p)
			`, map[string]any{"iri": unit.IRI, "piri": data.Package.IRI})
			if err != nil {
				return err
			}
		}

		facetSets := map[string][]string{
			"doc_types":        unit.DocTypes,
			"product_variants": unit.ProductVariants,
			"components":       unit.Components,
			"roles":            unit.Roles,
			"subjects":         unit.Subjects,
			"phases":           unit.Phases,
		}
		for key, values := range facetSets {
			fr := facetRels[key]
			if err := s.attachFacets(ctx, sess, unit.IRI, values, fr.label, fr.rel); err != nil {
				return err
			}
		}
	}

	for _, r := range data.Renditions {
		_, err := sess.Run(ctx, `
			MERGE (x {iri:$parent})
			MERGE (r:Rendition {source_path:$src})
			SET r.format=$fmt
			MERGE (x)-[:HAS_RENDITION]->(r)
		`, map[string]any{"parent": r.ParentIRI, "src": r.SourcePath, "fmt": r.Format})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) attachFacets(ctx context.Context, sess neo4j.SessionWithContext, iri string, values []string, label, rel string) error {
	for _, val := range values {
		q := fmt.Sprintf(`
			MATCH (n {iri:$iri})
			MERGE (m:%s {iri:$val})
			MERGE (n)-[:%s]->(m)
		`, label, rel)
		if _, err := sess.Run(ctx, q, map[string]any{"iri": iri, "val": val}); err != nil {
			return err
		}
	}
	return nil
}

// LinkChunks merges chunk nodes by chunk_id and their DERIVED_FROM edges.
func (s *Store) LinkChunks(ctx context.Context, chunks []domain.ChunkNode) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)
	for _, c := range chunks {
		_, err := sess.Run(ctx, `
			MERGE (ch:Chunk {chunk_id:$cid})
			SET ch.path=$path, ch.start_char=$start, ch.end_char=$end
			WITH ch
			MATCH (n {iri:$parent})
			MERGE (ch)-[:DERIVED_FROM]->(n)
		`, map[string]any{"cid": c.ChunkID, "path": c.Path, "start": c.StartChar, "end": c.EndChar, "parent": c.ParentIRI})
		if err != nil {
			return err
		}
	}
	return nil
}

// FetchFacets collects the facet attribute sets of one unit.
func (s *Store) FetchFacets(ctx context.Context, iri string) (domain.FacetAttrs, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	var attrs domain.FacetAttrs
	var err error
	if attrs.ProductVariants, err = s.collect(ctx, sess, iri, "RELATES_TO_PRODUCT_VARIANT"); err != nil {
		return attrs, err
	}
	if attrs.Components, err = s.collect(ctx, sess, iri, "RELATES_TO_COMPONENT"); err != nil {
		return attrs, err
	}
	if attrs.Roles, err = s.collect(ctx, sess, iri, "HAS_ROLE"); err != nil {
		return attrs, err
	}
	if attrs.DocTypes, err = s.collect(ctx, sess, iri, "APPLIES_TO_DOCUMENT_TYPE"); err != nil {
		return attrs, err
	}
	return attrs, nil
}

func (s *Store) collect(ctx context.Context, sess neo4j.SessionWithContext, iri, rel string) ([]string, error) {
	q := fmt.Sprintf(`
		MATCH (n {iri:$iri})-[:%s]->(m)
		RETURN collect(distinct m.iri) AS items
	`, rel)
	result, err := sess.Run(ctx, q, map[string]any{"iri": iri})
	if err != nil {
		return nil, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, err
	}
	return stringList(record.AsMap()["items"]), nil
}

// FindCandidates builds a progressive-intersection query: one MATCH per
// supplied facet kind, combined with AND in the WHERE clause.
func (s *Store) FindCandidates(ctx context.Context, filters domain.FacetFilters) ([]string, error) {
	q := "MATCH (n) "
	var where []string
	params := map[string]any{}

	addFacet := func(values []string, pattern, clause, param string) {
		if len(values) == 0 {
			return
		}
		q += pattern
		where = append(where, clause)
		params[param] = values
	}

	addFacet(filters.ProductVariants, "MATCH (n)-[:RELATES_TO_PRODUCT_VARIANT]->(pv:ProductVariant) ", "pv.iri IN $product_variants", "product_variants")
	addFacet(filters.Components, "MATCH (n)-[:RELATES_TO_COMPONENT]->(c:Component) ", "c.iri IN $components", "components")
	addFacet(filters.Roles, "MATCH (n)-[:HAS_ROLE]->(r:Role) ", "r.iri IN $roles", "roles")
	addFacet(filters.DocTypes, "MATCH (n)-[:APPLIES_TO_DOCUMENT_TYPE]->(d:DocType) ", "d.iri IN $doc_types", "doc_types")
	addFacet(filters.Subjects, "MATCH (n)-[:HAS_SUBJECT]->(s:Subject) ", "s.iri IN $subjects", "subjects")
	addFacet(filters.Phases, "MATCH (n)-[:HAS_LIFECYCLE_PHASE]->(ph:LifecyclePhase) ", "ph.iri IN $phases", "phases")

	if len(where) > 0 {
		q += "WHERE " + joinAnd(where) + " "
	}
	q += "RETURN collect(distinct n.iri) AS iris"

	sess := s.session(ctx)
	defer sess.Close(ctx)
	result, err := sess.Run(ctx, q, params)
	if err != nil {
		return nil, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, err
	}
	return stringList(record.AsMap()["iris"]), nil
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
