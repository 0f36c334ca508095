// Package grpcserve exposes the inference pipeline over gRPC. Request and
// response bodies are plain Go structs marshaled with jsonCodec rather than
// protoc-generated types — callers negotiate it with the "json" content
// subtype (application/grpc+json).
package grpcserve

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/inference"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// PredictRequest is the gRPC wire shape for a predict call.
type PredictRequest struct {
	Inputs   []string          `json:"inputs"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PredictResponse carries the kind-specific results as an untyped value,
// marshaled by jsonCodec, so one service descriptor serves every model kind.
type PredictResponse struct {
	Results  any               `json:"results"`
	ModelID  string            `json:"model_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Server wires one inference.State into a grpc.ServiceDesc.
type Server struct {
	state *inference.State
}

// New constructs the server wrapper.
func New(state *inference.State) *Server {
	return &Server{state: state}
}

// Register attaches the Inference service to an existing *grpc.Server.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	in := inference.Request{Inputs: req.Inputs, Metadata: req.Metadata}

	var err error
	resp := &PredictResponse{ModelID: s.state.ModelID, Metadata: req.Metadata}

	switch s.state.Kind {
	case container.Embedding:
		var r *inference.Response[inference.EmbeddingResult]
		r, err = inference.RunEmbedding(ctx, s.state, in)
		if r != nil {
			resp.Results = r.Results
		}
	case container.SequenceClassification:
		var r *inference.Response[inference.SequenceClassificationResult]
		r, err = inference.RunSequenceClassification(ctx, s.state, in)
		if r != nil {
			resp.Results = r.Results
		}
	case container.TokenClassification:
		var r *inference.Response[inference.TokenClassificationResult]
		r, err = inference.RunTokenClassification(ctx, s.state, in)
		if r != nil {
			resp.Results = r.Results
		}
	case container.SentenceEmbedding:
		var r *inference.Response[inference.SentenceEmbeddingResult]
		r, err = inference.RunSentenceEmbedding(ctx, s.state, in)
		if r != nil {
			resp.Results = r.Results
		}
	default:
		err = &inference.ConfigError{Reason: "unknown model kind"}
	}

	if err != nil {
		return nil, toGRPCStatus(err)
	}
	return resp, nil
}

func toGRPCStatus(err error) error {
	var inputErr *inference.InputError
	if errors.As(err, &inputErr) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PredictRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).predict(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/encoderfile.Inference/Predict"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "encoderfile.Inference",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "encoderfile/inference.proto",
}
