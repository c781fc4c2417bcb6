// Package metadata parses an iiRDS package's RDF/XML metadata document
// into the normalized graph-data model. The vocabulary is loosely
// standardized across producers, so every logical attribute is resolved
// through an ordered list of candidate predicates: the first predicate
// that yields a value wins.
package metadata

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/knakk/rdf"

	"iirdsrag/internal/domain"
)

const (
	iirdsNS   = "http://iirds.tekom.de/iirds#"
	rdfType   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsLabel = "http://www.w3.org/2000/01/rdf-schema#label"
	dctermsNS = "http://purl.org/dc/terms/"
	dcNS      = "http://purl.org/dc/elements/1.1/"
)

func iirds(local string) string { return iirdsNS + local }

// SupportedExtensions are the rendition file types the pipeline accepts.
var SupportedExtensions = []string{".xhtml", ".htm", ".html", ".pdf"}

var (
	labelPreds    = []string{rdfsLabel, dctermsNS + "title", dcNS + "title"}
	languagePreds = []string{iirds("language"), dctermsNS + "language", dcNS + "language"}

	statusValuePreds = []string{iirds("has-content-lifecycle-status-value"), iirds("InformationUnitLifecycleStatusValue")}
	statusDatePreds  = []string{iirds("dateOfStatus"), iirds("InformationUnitLifecycleStatusDate")}

	// Renditions appear under both vocabulary styles as well.
	hasRenditionPreds = []string{iirds("has-rendition"), iirds("hasRendition"), iirds("Rendition")}
	sourcePreds       = []string{iirds("source"), iirds("Source"), dctermsNS + "source"}
	formatPreds       = []string{iirds("format"), iirds("Format"), dctermsNS + "format"}
	contentRefPreds   = []string{iirds("contentReference")}
)

// facetPreds pairs the preferred hyphenated predicate with its legacy
// fallback. First non-empty source wins; the two are never unioned.
type facetPreds struct {
	preferred string
	legacy    string
}

var (
	docTypeFacet   = facetPreds{iirds("is-applicable-for-document-type"), iirds("DocumentType")}
	variantFacet   = facetPreds{iirds("relates-to-product-variant"), iirds("ProductVariant")}
	componentFacet = facetPreds{iirds("relates-to-component"), iirds("Component")}
	roleFacet      = facetPreds{iirds("relates-to-qualification"), iirds("hasRole")}
	subjectFacet   = facetPreds{iirds("has-subject"), iirds("Subject")}
	phaseFacet     = facetPreds{iirds("relates-to-product-lifecycle-phase"), iirds("ProductLifecyclePhase")}
)

// Parse decodes RDF/XML metadata bytes into normalized graph data.
// Returns an error wrapping domain.ErrMalformedMetadata when the bytes
// are not valid RDF/XML.
func Parse(data []byte) (*domain.GraphData, error) {
	dec := rdf.NewTripleDecoder(bytes.NewReader(data), rdf.RDFXML)
	triples, err := dec.DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMetadata, err)
	}
	idx := newIndex(triples)

	out := &domain.GraphData{}

	if pkgs := idx.subjectsOfType(iirds("Package")); len(pkgs) > 0 {
		out.Package = &domain.Package{IRI: pkgs[0]}
	}

	for _, iu := range idx.subjectsOfType(iirds("Document")) {
		out.Documents = append(out.Documents, extractUnit(idx, iu, domain.KindDocument))
	}
	for _, iu := range idx.subjectsOfType(iirds("Topic")) {
		out.Topics = append(out.Topics, extractUnit(idx, iu, domain.KindTopic))
	}

	out.Renditions = collectRenditions(idx, out)
	return out, nil
}

func extractUnit(idx *index, iu string, kind domain.UnitKind) domain.Unit {
	return domain.Unit{
		IRI:      iu,
		Label:    idx.firstOf(iu, labelPreds),
		Language: idx.firstOf(iu, languagePreds),
		Kind:     kind,
		Status: domain.LifecycleStatus{
			Value: idx.firstOf(iu, statusValuePreds),
			Date:  idx.firstOf(iu, statusDatePreds),
		},
		DocTypes:        idx.facet(iu, docTypeFacet),
		ProductVariants: idx.facet(iu, variantFacet),
		Components:      idx.facet(iu, componentFacet),
		Roles:           idx.facet(iu, roleFacet),
		Subjects:        idx.facet(iu, subjectFacet),
		Phases:          idx.facet(iu, phaseFacet),
	}
}

// renditionKey deduplicates rendition declarations across all passes.
// Format is part of the key on purpose: a typed rendition with a declared
// format and a fallback match of the same file without one are distinct
// records (the graph store collapses them by source_path anyway).
type renditionKey struct {
	parent string
	path   string
	format string
}

func collectRenditions(idx *index, data *domain.GraphData) []domain.Rendition {
	seen := make(map[renditionKey]struct{})
	var renditions []domain.Rendition

	add := func(parentIRI, src, format string) {
		if src == "" {
			return
		}
		if !hasSupportedExtension(src) {
			return
		}
		key := renditionKey{parent: parentIRI, path: src, format: format}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		renditions = append(renditions, domain.Rendition{ParentIRI: parentIRI, SourcePath: src, Format: format})
	}

	srcPreds := append(append([]string{}, contentRefPreds...), sourcePreds...)

	// Pass 1: explicit typed Rendition nodes, attached to a typed unit
	// through any of the known has-rendition predicates.
	for _, r := range idx.subjectsOfType(iirds("Rendition")) {
		format := idx.firstOf(r, formatPreds)
		src := idx.firstOf(r, srcPreds)
		for _, pred := range hasRenditionPreds {
			for _, parent := range idx.subjectsWith(pred, r) {
				if idx.hasType(parent, iirds("Topic")) || idx.hasType(parent, iirds("Document")) {
					add(parent, src, format)
				}
			}
		}
	}

	// Pass 2: rendition declarations hanging directly off a unit.
	for _, unit := range data.Units() {
		iu := unit.IRI

		// unit -> rendition node
		for _, pred := range hasRenditionPreds {
			for _, r := range idx.many(iu, pred) {
				add(iu, idx.firstOf(r, srcPreds), idx.firstOf(r, formatPreds))
			}
		}

		// unit -> direct content path
		for _, pred := range srcPreds {
			for _, o := range idx.many(iu, pred) {
				add(iu, o, "")
			}
		}

		// Pass 3, last resort: any property value that looks like a file
		// path. Lower precision, so it only adds what the structured
		// passes missed.
		for _, prop := range idx.properties(iu) {
			if hasSupportedExtension(prop.obj) {
				add(iu, prop.obj, "")
			}
		}
	}

	return renditions
}

func hasSupportedExtension(s string) bool {
	ls := strings.ToLower(s)
	for _, ext := range SupportedExtensions {
		if strings.HasSuffix(ls, ext) {
			return true
		}
	}
	return false
}

// property is one (predicate, object) pair on a subject, in document order.
type property struct {
	pred string
	obj  string
}

// index is a subject-keyed view over the decoded triples.
type index struct {
	order []string
	props map[string][]property
}

func newIndex(triples []rdf.Triple) *index {
	idx := &index{props: make(map[string][]property)}
	for _, t := range triples {
		subj := t.Subj.String()
		if _, ok := idx.props[subj]; !ok {
			idx.order = append(idx.order, subj)
		}
		idx.props[subj] = append(idx.props[subj], property{pred: t.Pred.String(), obj: t.Obj.String()})
	}
	return idx
}

// properties returns all (predicate, object) pairs of a subject.
func (idx *index) properties(subj string) []property {
	return idx.props[subj]
}

// one returns the first object for subject and predicate, or "".
func (idx *index) one(subj, pred string) string {
	for _, p := range idx.props[subj] {
		if p.pred == pred {
			return p.obj
		}
	}
	return ""
}

// many returns all objects for subject and predicate.
func (idx *index) many(subj, pred string) []string {
	var out []string
	for _, p := range idx.props[subj] {
		if p.pred == pred {
			out = append(out, p.obj)
		}
	}
	return out
}

// firstOf tries predicates in order and returns the first value found.
func (idx *index) firstOf(subj string, preds []string) string {
	for _, pred := range preds {
		if v := idx.one(subj, pred); v != "" {
			return v
		}
	}
	return ""
}

// facet resolves a facet relationship set: preferred predicate first,
// legacy only when the preferred yields nothing.
func (idx *index) facet(subj string, f facetPreds) []string {
	if vals := idx.many(subj, f.preferred); len(vals) > 0 {
		return vals
	}
	return idx.many(subj, f.legacy)
}

// subjectsOfType returns subjects carrying rdf:type typeIRI, in document order.
func (idx *index) subjectsOfType(typeIRI string) []string {
	var out []string
	for _, subj := range idx.order {
		if idx.hasType(subj, typeIRI) {
			out = append(out, subj)
		}
	}
	return out
}

func (idx *index) hasType(subj, typeIRI string) bool {
	for _, p := range idx.props[subj] {
		if p.pred == rdfType && p.obj == typeIRI {
			return true
		}
	}
	return false
}

// subjectsWith returns subjects holding (pred, obj), in document order.
func (idx *index) subjectsWith(pred, obj string) []string {
	var out []string
	for _, subj := range idx.order {
		for _, p := range idx.props[subj] {
			if p.pred == pred && p.obj == obj {
				out = append(out, subj)
				break
			}
		}
	}
	return out
}
