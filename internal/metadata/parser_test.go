package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iirdsrag/internal/domain"
)

const sampleRDF = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
         xmlns:iirds="http://iirds.tekom.de/iirds#">
  <rdf:Description rdf:about="urn:example:package:p1">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Package"/>
  </rdf:Description>
  <rdf:Description rdf:about="urn:example:topic:t1">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Topic"/>
    <rdfs:label>Install the pump</rdfs:label>
    <iirds:language>en</iirds:language>
    <iirds:relates-to-component rdf:resource="urn:example:component:C1"/>
    <iirds:Component rdf:resource="urn:example:component:LEGACY"/>
    <iirds:Subject rdf:resource="urn:example:subject:S1"/>
    <iirds:has-rendition rdf:resource="urn:example:rendition:r1"/>
  </rdf:Description>
  <rdf:Description rdf:about="urn:example:doc:d1">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Document"/>
    <rdfs:label>Operating manual</rdfs:label>
    <iirds:is-applicable-for-document-type rdf:resource="urn:example:doctype:manual"/>
    <iirds:source>content/manual.pdf</iirds:source>
  </rdf:Description>
  <rdf:Description rdf:about="urn:example:rendition:r1">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Rendition"/>
    <iirds:source>content/t1.xhtml</iirds:source>
    <iirds:format>application/xhtml+xml</iirds:format>
  </rdf:Description>
</rdf:RDF>`

func TestParseUnitsAndPackage(t *testing.T) {
	data, err := Parse([]byte(sampleRDF))
	require.NoError(t, err)

	require.NotNil(t, data.Package)
	assert.Equal(t, "urn:example:package:p1", data.Package.IRI)

	require.Len(t, data.Topics, 1)
	topic := data.Topics[0]
	assert.Equal(t, "urn:example:topic:t1", topic.IRI)
	assert.Equal(t, "Install the pump", topic.Label)
	assert.Equal(t, "en", topic.Language)
	assert.Equal(t, domain.KindTopic, topic.Kind)

	require.Len(t, data.Documents, 1)
	assert.Equal(t, domain.KindDocument, data.Documents[0].Kind)
	assert.Equal(t, []string{"urn:example:doctype:manual"}, data.Documents[0].DocTypes)
}

func TestParseFacetFallbackIsNotAUnion(t *testing.T) {
	data, err := Parse([]byte(sampleRDF))
	require.NoError(t, err)

	topic := data.Topics[0]
	// the preferred predicate wins; the legacy value must not be merged in
	assert.Equal(t, []string{"urn:example:component:C1"}, topic.Components)
	// legacy predicate used when no preferred value exists
	assert.Equal(t, []string{"urn:example:subject:S1"}, topic.Subjects)
}

func TestParseRenditionDedup(t *testing.T) {
	data, err := Parse([]byte(sampleRDF))
	require.NoError(t, err)

	// the typed rendition node is reachable through pass 1 and pass 2 but
	// must yield a single record
	var topicRends []domain.Rendition
	for _, r := range data.Renditions {
		if r.ParentIRI == "urn:example:topic:t1" {
			topicRends = append(topicRends, r)
		}
	}
	require.Len(t, topicRends, 1)
	assert.Equal(t, "content/t1.xhtml", topicRends[0].SourcePath)
	assert.Equal(t, "application/xhtml+xml", topicRends[0].Format)
}

func TestParseDirectSourceRendition(t *testing.T) {
	data, err := Parse([]byte(sampleRDF))
	require.NoError(t, err)

	var docRends []domain.Rendition
	for _, r := range data.Renditions {
		if r.ParentIRI == "urn:example:doc:d1" {
			docRends = append(docRends, r)
		}
	}
	require.Len(t, docRends, 1)
	assert.Equal(t, "content/manual.pdf", docRends[0].SourcePath)
	assert.Empty(t, docRends[0].Format)
}

func TestParseSkipsUnsupportedExtensions(t *testing.T) {
	const rdfXML = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:iirds="http://iirds.tekom.de/iirds#">
  <rdf:Description rdf:about="urn:t">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Topic"/>
    <iirds:source>content/raw.bin</iirds:source>
    <iirds:source>content/video.mp4</iirds:source>
  </rdf:Description>
</rdf:RDF>`
	data, err := Parse([]byte(rdfXML))
	require.NoError(t, err)
	assert.Empty(t, data.Renditions)
}

func TestParseMalformedMetadata(t *testing.T) {
	_, err := Parse([]byte("this is not rdf/xml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedMetadata)
}

func TestParseNoPackageDeclared(t *testing.T) {
	const rdfXML = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:iirds="http://iirds.tekom.de/iirds#">
  <rdf:Description rdf:about="urn:t">
    <rdf:type rdf:resource="http://iirds.tekom.de/iirds#Topic"/>
  </rdf:Description>
</rdf:RDF>`
	data, err := Parse([]byte(rdfXML))
	require.NoError(t, err)
	assert.Nil(t, data.Package)
	assert.Len(t, data.Topics, 1)
}
