package serve

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/importshim/pkg/pipeline"
	"github.com/praetorian-inc/importshim/pkg/types"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "render_chunk" | "render_batch" | "close"
	Payload json.RawMessage `json:"payload"`
}

// RenderChunkPayload is the payload for "render_chunk" requests: one chunk
// as handed to the bundler's renderChunk hook.
type RenderChunkPayload struct {
	Code     string `json:"code"`
	FileName string `json:"fileName"`
	// Map is the chunk's current source map, as an object or a JSON string.
	Map json.RawMessage `json:"map,omitempty"`
}

// upstreamMap returns the map document bytes, or nil if none was sent.
func (p RenderChunkPayload) upstreamMap() ([]byte, error) {
	raw := bytes.TrimSpace(p.Map)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		return []byte(s), nil
	}
	return raw, nil
}

// Chunk converts the payload into a pipeline chunk.
func (p RenderChunkPayload) Chunk() (pipeline.Chunk, error) {
	upstream, err := p.upstreamMap()
	if err != nil {
		return pipeline.Chunk{}, fmt.Errorf("reading map for %s: %w", p.FileName, err)
	}
	return pipeline.Chunk{
		Path:       p.FileName,
		Content:    []byte(p.Code),
		Map:        upstream,
		Provenance: types.HookProvenance{FileName: p.FileName},
	}, nil
}

// PipelineChunks converts every chunk in the payload.
func (p RenderBatchPayload) PipelineChunks() ([]pipeline.Chunk, error) {
	chunks := make([]pipeline.Chunk, len(p.Chunks))
	for i, c := range p.Chunks {
		chunk, err := c.Chunk()
		if err != nil {
			return nil, err
		}
		chunks[i] = chunk
	}
	return chunks, nil
}

// RenderBatchPayload is the payload for "render_batch" requests
type RenderBatchPayload struct {
	Chunks []RenderChunkPayload `json:"chunks"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | "render_chunk" | "render_batch" | request type on error
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
	Mode    string `json:"mode"`
	Rule    string `json:"rule"`
}

// RenderChunkData is the data for a rewritten chunk. Unchanged chunks are
// answered with null data so the bundler keeps its own output.
type RenderChunkData struct {
	Code string          `json:"code"`
	Map  json.RawMessage `json:"map"`
}

// RenderBatchData holds one entry per requested chunk, in request order;
// unchanged chunks are null.
type RenderBatchData struct {
	Results []*RenderChunkData `json:"results"`
}

// NewRenderChunkData returns the response data for a chunk result, nil
// when the chunk is unchanged.
func NewRenderChunkData(r *pipeline.ChunkResult) *RenderChunkData {
	if !r.Changed {
		return nil
	}
	return &RenderChunkData{Code: r.Code, Map: r.Map}
}

// NewRenderBatchData returns the response data for a batch result.
func NewRenderBatchData(b *pipeline.BatchResult) *RenderBatchData {
	out := &RenderBatchData{Results: make([]*RenderChunkData, len(b.Results))}
	for i, r := range b.Results {
		out.Results[i] = NewRenderChunkData(r)
	}
	return out
}
