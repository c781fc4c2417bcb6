// Package memory is an in-process graphstore.Store used for tests and
// standalone runs. It keeps the same natural-key merge semantics as the
// Neo4j adapter.
package memory

import (
	"context"
	"sort"
	"sync"

	"iirdsrag/internal/domain"
)

type unitRecord struct {
	unit   domain.Unit
	pkg    string
	facets map[string]map[string]struct{} // relationship type -> target iri set
}

const (
	relProductVariant = "RELATES_TO_PRODUCT_VARIANT"
	relComponent      = "RELATES_TO_COMPONENT"
	relRole           = "HAS_ROLE"
	relDocType        = "APPLIES_TO_DOCUMENT_TYPE"
	relSubject        = "HAS_SUBJECT"
	relPhase          = "HAS_LIFECYCLE_PHASE"
)

// Store is an in-memory graph store.
type Store struct {
	mu           sync.RWMutex
	packages     map[string]struct{}
	units        map[string]*unitRecord
	unitOrder    []string
	facetTargets map[string]map[string]struct{} // relationship type -> known target iris
	renditions   map[string]domain.Rendition    // keyed by source_path
	rendParents  map[string]map[string]struct{} // source_path -> parent iris
	chunks       map[string]domain.ChunkNode
	chunkParents map[string]string
}

func NewStore() *Store {
	return &Store{
		packages:     make(map[string]struct{}),
		units:        make(map[string]*unitRecord),
		facetTargets: make(map[string]map[string]struct{}),
		renditions:   make(map[string]domain.Rendition),
		rendParents:  make(map[string]map[string]struct{}),
		chunks:       make(map[string]domain.ChunkNode),
		chunkParents: make(map[string]string),
	}
}

func (s *Store) EnsureSchema(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) UpsertGraph(_ context.Context, data *domain.GraphData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg := ""
	if data.Package != nil {
		pkg = data.Package.IRI
		s.packages[pkg] = struct{}{}
	}

	for _, unit := range data.Units() {
		rec, ok := s.units[unit.IRI]
		if !ok {
			rec = &unitRecord{facets: make(map[string]map[string]struct{})}
			s.units[unit.IRI] = rec
			s.unitOrder = append(s.unitOrder, unit.IRI)
		}
		// merge-then-overwrite: attributes always take the latest value
		rec.unit = unit
		if pkg != "" {
			rec.pkg = pkg
		}
		s.attach(rec, relDocType, unit.DocTypes)
		s.attach(rec, relProductVariant, unit.ProductVariants)
		s.attach(rec, relComponent, unit.Components)
		s.attach(rec, relRole, unit.Roles)
		s.attach(rec, relSubject, unit.Subjects)
		s.attach(rec, relPhase, unit.Phases)
	}

	for _, r := range data.Renditions {
		s.renditions[r.SourcePath] = r
		parents, ok := s.rendParents[r.SourcePath]
		if !ok {
			parents = make(map[string]struct{})
			s.rendParents[r.SourcePath] = parents
		}
		parents[r.ParentIRI] = struct{}{}
	}
	return nil
}

func (s *Store) attach(rec *unitRecord, rel string, values []string) {
	if len(values) == 0 {
		return
	}
	set, ok := rec.facets[rel]
	if !ok {
		set = make(map[string]struct{})
		rec.facets[rel] = set
	}
	targets, ok := s.facetTargets[rel]
	if !ok {
		targets = make(map[string]struct{})
		s.facetTargets[rel] = targets
	}
	for _, v := range values {
		set[v] = struct{}{}
		targets[v] = struct{}{}
	}
}

func (s *Store) LinkChunks(_ context.Context, chunks []domain.ChunkNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ChunkID] = c
		s.chunkParents[c.ChunkID] = c.ParentIRI
	}
	return nil
}

func (s *Store) FetchFacets(_ context.Context, iri string) (domain.FacetAttrs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.units[iri]
	if !ok {
		return domain.FacetAttrs{}, nil
	}
	return domain.FacetAttrs{
		ProductVariants: setToList(rec.facets[relProductVariant]),
		Components:      setToList(rec.facets[relComponent]),
		Roles:           setToList(rec.facets[relRole]),
		DocTypes:        setToList(rec.facets[relDocType]),
	}, nil
}

func (s *Store) FindCandidates(_ context.Context, filters domain.FacetFilters) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	constraints := []struct {
		rel    string
		values []string
	}{
		{relProductVariant, filters.ProductVariants},
		{relComponent, filters.Components},
		{relRole, filters.Roles},
		{relDocType, filters.DocTypes},
		{relSubject, filters.Subjects},
		{relPhase, filters.Phases},
	}

	out := []string{}
	for _, iri := range s.unitOrder {
		rec := s.units[iri]
		ok := true
		for _, c := range constraints {
			if len(c.values) == 0 {
				continue
			}
			if !intersects(rec.facets[c.rel], c.values) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, iri)
		}
	}
	return out, nil
}

// Stats reports node and relationship counts; tests use it to check that
// re-ingestion does not grow the graph.
func (s *Store) Stats() (nodes, relationships int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes = len(s.packages) + len(s.units) + len(s.renditions) + len(s.chunks)
	for _, targets := range s.facetTargets {
		nodes += len(targets)
	}
	for _, rec := range s.units {
		if rec.pkg != "" {
			relationships++
		}
		for _, set := range rec.facets {
			relationships += len(set)
		}
	}
	for _, parents := range s.rendParents {
		relationships += len(parents)
	}
	relationships += len(s.chunkParents)
	return nodes, relationships
}

func intersects(set map[string]struct{}, values []string) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func setToList(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
