//go:build wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/importshim/pkg/config"
	"github.com/praetorian-inc/importshim/pkg/pipeline"
	"github.com/praetorian-inc/importshim/pkg/rule"
	"github.com/praetorian-inc/importshim/pkg/serve"
)

var (
	pipelines   = make(map[int]*pipeline.Pipeline)
	pipelinesMu sync.RWMutex
	nextID      int
)

// pipelineOptions is the JSON accepted by ImportShimNewPipeline.
type pipelineOptions struct {
	Mode           string `json:"mode"`
	SourcesContent *bool  `json:"sources_content"`
}

// errorResult reports a failure to JS. Defects are flagged so the plugin
// can fail the build instead of skipping the chunk.
func errorResult(msg string, err error) map[string]interface{} {
	var defect *pipeline.DefectError
	return map[string]interface{}{
		"error":  msg + ": " + err.Error(),
		"defect": errors.As(err, &defect),
	}
}

// newPipeline creates a pipeline for one build.
// JS: ImportShimNewPipeline(optionsJSON) -> {handle} or {error}
func newPipeline(this js.Value, args []js.Value) interface{} {
	var opts pipelineOptions
	if len(args) > 0 && args[0].Type() == js.TypeString && args[0].String() != "" {
		if err := json.Unmarshal([]byte(args[0].String()), &opts); err != nil {
			return errorResult("failed to parse options JSON", err)
		}
	}

	mode, err := config.ParseMode(opts.Mode)
	if err != nil {
		return errorResult("invalid options", err)
	}

	// A nil store keeps results in memory
	p, err := pipeline.New(pipeline.Config{Mode: mode, SourcesContent: opts.SourcesContent}, nil)
	if err != nil {
		return errorResult("failed to create pipeline", err)
	}

	pipelinesMu.Lock()
	id := nextID
	nextID++
	pipelines[id] = p
	pipelinesMu.Unlock()

	return map[string]interface{}{"handle": id}
}

func lookup(handle int) (*pipeline.Pipeline, bool) {
	pipelinesMu.RLock()
	defer pipelinesMu.RUnlock()
	p, ok := pipelines[handle]
	return p, ok
}

// renderChunk rewrites one chunk.
// JS: ImportShimRenderChunk(handle, payloadJSON) -> JSON {code, map}, "null", or {error}
func renderChunk(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "handle and payloadJSON arguments required"}
	}

	p, ok := lookup(args[0].Int())
	if !ok {
		return map[string]interface{}{"error": "invalid pipeline handle"}
	}

	var payload serve.RenderChunkPayload
	if err := json.Unmarshal([]byte(args[1].String()), &payload); err != nil {
		return errorResult("failed to parse payload JSON", err)
	}
	chunk, err := payload.Chunk()
	if err != nil {
		return errorResult("invalid payload", err)
	}

	res, err := p.Process(context.Background(), chunk)
	if err != nil {
		return errorResult("render failed", err)
	}

	jsonBytes, err := json.Marshal(serve.NewRenderChunkData(res))
	if err != nil {
		return errorResult("failed to marshal result", err)
	}
	return string(jsonBytes)
}

// renderBatch rewrites several chunks.
// JS: ImportShimRenderBatch(handle, payloadJSON) -> JSON {results} or {error}
func renderBatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "handle and payloadJSON arguments required"}
	}

	p, ok := lookup(args[0].Int())
	if !ok {
		return map[string]interface{}{"error": "invalid pipeline handle"}
	}

	var payload serve.RenderBatchPayload
	if err := json.Unmarshal([]byte(args[1].String()), &payload); err != nil {
		return errorResult("failed to parse payload JSON", err)
	}
	chunks, err := payload.PipelineChunks()
	if err != nil {
		return errorResult("invalid payload", err)
	}

	batch, err := p.ProcessBatch(context.Background(), chunks)
	if err != nil {
		return errorResult("batch render failed", err)
	}

	jsonBytes, err := json.Marshal(serve.NewRenderBatchData(batch))
	if err != nil {
		return errorResult("failed to marshal results", err)
	}
	return string(jsonBytes)
}

// closePipeline releases a pipeline.
// JS: ImportShimClosePipeline(handle)
func closePipeline(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "handle argument required"}
	}

	handle := args[0].Int()

	pipelinesMu.Lock()
	p, ok := pipelines[handle]
	if ok {
		delete(pipelines, handle)
	}
	pipelinesMu.Unlock()

	if !ok {
		return map[string]interface{}{"error": "invalid pipeline handle"}
	}

	p.Close()
	return nil
}

// builtinRule returns the dynamic-import rule as JSON.
// JS: ImportShimBuiltinRule() -> JSON rule
func builtinRule(this js.Value, args []js.Value) interface{} {
	jsonBytes, err := json.Marshal(rule.Builtin())
	if err != nil {
		return errorResult("failed to marshal rule", err)
	}
	return string(jsonBytes)
}
