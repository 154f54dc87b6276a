package media

import (
	"encoding/json"
	"fmt"
)

// ChunkKind tells whether a chunk can be decoded on its own.
type ChunkKind int

const (
	// ChunkUnset is the zero value and is rejected by NewEncodedChunk.
	ChunkUnset ChunkKind = iota
	// ChunkKey is a self-contained chunk.
	ChunkKey
	// ChunkDelta depends on a prior reference.
	ChunkDelta
)

// String returns the wire name of the kind.
func (k ChunkKind) String() string {
	switch k {
	case ChunkKey:
		return "key"
	case ChunkDelta:
		return "delta"
	default:
		return ""
	}
}

// ParseChunkKind parses "key" or "delta".
func ParseChunkKind(s string) (ChunkKind, error) {
	switch s {
	case "key":
		return ChunkKey, nil
	case "delta":
		return ChunkDelta, nil
	default:
		return ChunkUnset, fmt.Errorf("%w: chunk type must be key or delta, got %q", ErrInvalidArgument, s)
	}
}

// EncodedChunkInit carries the fields for NewEncodedChunk.
type EncodedChunkInit struct {
	Kind      ChunkKind
	Timestamp int64
	Duration  int64
	Data      []byte
}

// EncodedChunk is a container-wrapped unit of compressed video.
// It is not modified after construction.
type EncodedChunk struct {
	Kind            ChunkKind
	TimestampMicros int64
	DurationMicros  int64
	Data            []byte
}

// NewEncodedChunk validates init and builds a chunk.
func NewEncodedChunk(init EncodedChunkInit) (*EncodedChunk, error) {
	if init.Kind != ChunkKey && init.Kind != ChunkDelta {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidArgument)
	}
	if init.Data == nil {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidArgument)
	}
	return &EncodedChunk{
		Kind:            init.Kind,
		TimestampMicros: init.Timestamp,
		DurationMicros:  init.Duration,
		Data:            init.Data,
	}, nil
}

// ByteLength returns the size of the chunk payload.
func (c *EncodedChunk) ByteLength() int {
	return len(c.Data)
}

type chunkWire struct {
	Kind            string `json:"kind"`
	TimestampMicros int64  `json:"timestampMicros"`
	DurationMicros  int64  `json:"durationMicros"`
	Data            []byte `json:"data"`
}

// MarshalJSON encodes the chunk in its wire shape.
func (c *EncodedChunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(chunkWire{
		Kind:            c.Kind.String(),
		TimestampMicros: c.TimestampMicros,
		DurationMicros:  c.DurationMicros,
		Data:            c.Data,
	})
}

// UnmarshalJSON decodes the wire shape and applies constructor validation.
func (c *EncodedChunk) UnmarshalJSON(b []byte) error {
	var w chunkWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind, err := ParseChunkKind(w.Kind)
	if err != nil {
		return err
	}
	chunk, err := NewEncodedChunk(EncodedChunkInit{
		Kind:      kind,
		Timestamp: w.TimestampMicros,
		Duration:  w.DurationMicros,
		Data:      w.Data,
	})
	if err != nil {
		return err
	}
	*c = *chunk
	return nil
}
