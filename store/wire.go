// Package store persists compiled Rill programs: a canonical CBOR encoding
// of a chunk and a sqlite-backed cache keyed by source content.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/rill/compiler"
	"github.com/chazu/rill/vm"
)

// formatVersion is mixed into cache keys so stale encodings are never read.
const formatVersion = "rill-chunk-1"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Chunk is the stored form of a compiled program.
type Chunk struct {
	Code      []byte            `cbor:"1,keyasint"`
	Positions map[uint32]Span   `cbor:"2,keyasint"`
	Functions map[string]uint32 `cbor:"3,keyasint"`
	Globals   []string          `cbor:"4,keyasint"`
}

// Span is a stored source position.
type Span struct {
	Source int `cbor:"1,keyasint"`
	Start  int `cbor:"2,keyasint"`
	End    int `cbor:"3,keyasint"`
}

// FromCompiler captures everything compiled so far by c.
func FromCompiler(c *compiler.Compiler) *Chunk {
	src := c.Chunk()
	out := &Chunk{
		Code:      append([]byte(nil), src.Code()...),
		Positions: make(map[uint32]Span, len(src.Positions())),
		Functions: make(map[string]uint32, len(c.Functions())),
		Globals:   append([]string(nil), c.Globals()...),
	}
	for pc, pos := range src.Positions() {
		out.Positions[pc] = Span{Source: pos.Source, Start: pos.Start, End: pos.End}
	}
	for name, addr := range c.Functions() {
		out.Functions[name] = addr
	}
	return out
}

// Compiled rebuilds the compiler chunk for running and fault lookup.
func (c *Chunk) Compiled() *compiler.Chunk {
	positions := make(map[uint32]compiler.Position, len(c.Positions))
	for pc, s := range c.Positions {
		positions[pc] = compiler.Position{Source: s.Source, Start: s.Start, End: s.End}
	}
	return compiler.ChunkFrom(c.Code, positions)
}

// MarshalChunk serializes a Chunk to CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes and checks that its
// tables point into its code.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("store: unmarshal chunk: %w", err)
	}
	if len(c.Code) == 0 {
		return nil, fmt.Errorf("store: chunk has no code")
	}
	size := uint64(len(c.Code))
	for pc := range c.Positions {
		if uint64(pc) >= size {
			return nil, fmt.Errorf("store: position at %d outside code of %d bytes", pc, size)
		}
	}
	for name, addr := range c.Functions {
		if uint64(addr)+vm.FunctionHeaderSize > size {
			return nil, fmt.Errorf("store: function %s at %d outside code of %d bytes", name, addr, size)
		}
	}
	return &c, nil
}

// Key derives the cache key for source compiled against natives. Native
// indices are baked into the code, so the table's signature is part of the
// key.
func Key(source []byte, natives *vm.Natives) string {
	h := sha256.New()
	h.Write([]byte(formatVersion))
	h.Write([]byte{0})
	h.Write([]byte(natives.Signature()))
	h.Write([]byte{0})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}
