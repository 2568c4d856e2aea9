package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/praetorian-inc/importshim/pkg/pipeline"
)

// Version is the server protocol version
const Version = "1.0.0"

// Server answers bundler hook requests over NDJSON.
type Server struct {
	pipeline *pipeline.Pipeline
	encoder  *json.Encoder
	decoder  *json.Decoder
	rule     string
}

// NewServer creates a new streaming server
func NewServer(p *pipeline.Pipeline, ruleID string, in io.Reader, out io.Writer) *Server {
	return &Server{
		pipeline: p,
		encoder:  json.NewEncoder(out),
		decoder:  json.NewDecoder(bufio.NewReader(in)),
		rule:     ruleID,
	}
}

// Run starts the server main loop. It returns nil when input ends or a
// close request arrives, and a *pipeline.DefectError if a chunk hit an
// invariant violation.
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	// Use buffered channels for incoming requests
	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until stdin closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if exit, err := s.processRequest(ctx, req); exit {
						return err
					}
				default:
					// No more pending requests
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if exit, err := s.processRequest(ctx, req); exit {
				return err
			}
		}
	}
}

// processRequest handles a single request and reports whether the server
// should exit, with the error to exit with.
func (s *Server) processRequest(ctx context.Context, req Request) (bool, error) {
	var err error
	switch req.Type {
	case "render_chunk":
		err = s.handleRenderChunk(ctx, req.Payload)
	case "render_batch":
		err = s.handleRenderBatch(ctx, req.Payload)
	case "close":
		return true, nil
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
		return false, nil
	}

	if err == nil {
		return false, nil
	}
	s.sendError(req.Type, err.Error())

	var defect *pipeline.DefectError
	if errors.As(err, &defect) {
		pipeline.Logger().Error("stopping after defect", zap.Error(err))
		return true, err
	}
	return false, nil
}

func (s *Server) sendReady() {
	data, _ := json.Marshal(ReadyData{
		Version: Version,
		Mode:    s.pipeline.Mode().String(),
		Rule:    s.rule,
	})
	s.encoder.Encode(Response{
		Success: true,
		Type:    "ready",
		Data:    data,
	})
}

func (s *Server) render(ctx context.Context, p RenderChunkPayload) (*RenderChunkData, error) {
	chunk, err := p.Chunk()
	if err != nil {
		return nil, err
	}
	res, err := s.pipeline.Process(ctx, chunk)
	if err != nil {
		return nil, err
	}
	return NewRenderChunkData(res), nil
}

func (s *Server) handleRenderChunk(ctx context.Context, payload json.RawMessage) error {
	var p RenderChunkPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	result, err := s.render(ctx, p)
	if err != nil {
		return err
	}

	// a nil result encodes as null: keep the chunk as is
	data, _ := json.Marshal(result)
	s.encoder.Encode(Response{
		Success: true,
		Type:    "render_chunk",
		Data:    data,
	})
	return nil
}

func (s *Server) handleRenderBatch(ctx context.Context, payload json.RawMessage) error {
	var p RenderBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	chunks, err := p.PipelineChunks()
	if err != nil {
		return err
	}

	batch, err := s.pipeline.ProcessBatch(ctx, chunks)
	if err != nil {
		return err
	}

	out := NewRenderBatchData(batch)
	data, _ := json.Marshal(out)
	s.encoder.Encode(Response{
		Success: true,
		Type:    "render_batch",
		Data:    data,
	})
	return nil
}

func (s *Server) sendError(reqType, msg string) {
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
}
