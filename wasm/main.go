//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("ImportShimNewPipeline", js.FuncOf(newPipeline))
	js.Global().Set("ImportShimRenderChunk", js.FuncOf(renderChunk))
	js.Global().Set("ImportShimRenderBatch", js.FuncOf(renderBatch))
	js.Global().Set("ImportShimClosePipeline", js.FuncOf(closePipeline))
	js.Global().Set("ImportShimBuiltinRule", js.FuncOf(builtinRule))

	// Keep WASM running
	<-make(chan struct{})
}
