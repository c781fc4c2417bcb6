// Package chunker splits extracted rendition text into deterministic,
// overlapping token-window chunks suitable for vector indexing.
package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Defaults used when a parameter is zero or out of range.
const (
	DefaultChunkTokens   = 250
	DefaultOverlapTokens = 40
	DefaultMinChunkChars = 40
)

// Piece is one emitted chunk. StartChar/EndChar are offsets into the
// joined chunk output, not into the source text: they increase
// monotonically and never overlap even though the token windows do.
type Piece struct {
	StartChar int
	EndChar   int
	Text      string
}

// TokenWindowChunker slides a fixed-size token window over whitespace-split
// text, advancing by chunkTokens-overlapTokens tokens per step.
type TokenWindowChunker struct {
	chunkTokens   int
	overlapTokens int
	minChunkChars int
}

func New(chunkTokens, overlapTokens, minChunkChars int) *TokenWindowChunker {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	if minChunkChars < 0 {
		minChunkChars = DefaultMinChunkChars
	}
	return &TokenWindowChunker{
		chunkTokens:   chunkTokens,
		overlapTokens: overlapTokens,
		minChunkChars: minChunkChars,
	}
}

// Chunk splits text into overlapping pieces. Pieces shorter than the
// minimum character length are dropped after offsets are assigned, so a
// dropped piece never shifts the offsets of its neighbors.
func (c *TokenWindowChunker) Chunk(text string) []Piece {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkTokens - c.overlapTokens
	if step < 1 {
		step = 1
	}
	var pieces []Piece
	start := 0
	for i := 0; i < len(words); i += step {
		end := i + c.chunkTokens
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		length := utf8.RuneCountInString(chunk)
		if length >= c.minChunkChars {
			pieces = append(pieces, Piece{StartChar: start, EndChar: start + length, Text: chunk})
		}
		start += length + 1
	}
	return pieces
}

// ChunkID derives the content-addressed id of a chunk. Any byte
// difference in the identity inputs (archive name, path, offsets, or the
// chunk's first 64 characters) produces a different id.
func ChunkID(zipName, path string, startChar, endChar int, text string) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d|%d|%s", zipName, path, startChar, endChar, firstRunes(text, 64))))
	return "chk_" + hex.EncodeToString(h[:])
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
