// Package mcpserve exposes the inference pipeline as a single tool over the
// mark3labs/mcp-go streamable-HTTP transport, backing the `mcp`
// subcommand.
package mcpserve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/inference"
)

// Server wraps an MCP server exposing one "predict" tool bound to state.
type Server struct {
	mcp   *server.MCPServer
	http  *server.StreamableHTTPServer
	state *inference.State
}

// New builds the MCP server and registers the predict tool.
func New(state *inference.State) *Server {
	mcpServer := server.NewMCPServer(
		"encoderfile",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s := &Server{mcp: mcpServer, state: state}
	s.registerPredictTool()
	s.http = server.NewStreamableHTTPServer(mcpServer)
	return s
}

// Handler exposes the underlying HTTP handler, letting the caller choose
// between plain and TLS listeners (--cert-file/--key-file).
func (s *Server) Handler() *server.StreamableHTTPServer { return s.http }

func (s *Server) registerPredictTool() {
	tool := mcp.NewTool(
		"predict",
		mcp.WithDescription(fmt.Sprintf("Run %s inference for model %q over a batch of input strings.", s.state.Kind.String(), s.state.ModelID)),
		mcp.WithArray("inputs",
			mcp.Required(),
			mcp.Description("Batch of input strings to run inference over.")),
	)
	s.mcp.AddTool(tool, s.handlePredict)
}

func (s *Server) handlePredict(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	argsMap, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	rawInputs, ok := argsMap["inputs"].([]any)
	if !ok {
		return mcp.NewToolResultError("inputs parameter is required and must be an array of strings"), nil
	}
	inputs := make([]string, 0, len(rawInputs))
	for _, v := range rawInputs {
		str, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError("inputs must be an array of strings"), nil
		}
		inputs = append(inputs, str)
	}

	req := inference.Request{Inputs: inputs}
	var payload any
	var err error
	switch s.state.Kind {
	case container.Embedding:
		payload, err = inference.RunEmbedding(ctx, s.state, req)
	case container.SequenceClassification:
		payload, err = inference.RunSequenceClassification(ctx, s.state, req)
	case container.TokenClassification:
		payload, err = inference.RunTokenClassification(ctx, s.state, req)
	case container.SentenceEmbedding:
		payload, err = inference.RunSentenceEmbedding(ctx, s.state, req)
	default:
		err = &inference.ConfigError{Reason: "unknown model kind"}
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshaling response: %s", err.Error())), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
