// Package httpserve exposes the inference pipeline over JSON-over-HTTP using
// gin: POST /predict, GET /health, GET /model, GET /openapi.json.
package httpserve

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/inference"
)

// Server wraps a gin.Engine bound to one inference State.
type Server struct {
	engine *gin.Engine
	state  *inference.State
	log    zerolog.Logger
}

// New builds the HTTP server, registering routes for state's model kind.
func New(state *inference.State, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, state: state, log: log}
	engine.Use(s.requestLogger())

	engine.GET("/health", s.handleHealth)
	engine.GET("/model", s.handleModel)
	engine.GET("/openapi.json", s.handleOpenAPI)
	engine.POST("/predict", s.handlePredict)

	return s
}

// Handler returns the underlying http.Handler, wrapped with otelhttp so every
// request produces a span when a TracerProvider has been installed (a no-op
// otherwise). For use by ListenAndServe or ListenAndServeTLS.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "encoderfile.http")
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()
		s.log.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK!")
}

func (s *Server) handleModel(c *gin.Context) {
	body := gin.H{
		"model_id":   s.state.ModelID,
		"model_type": s.state.Kind.String(),
	}
	if s.state.Config.Id2Label != nil {
		body["id2label"] = s.state.Config.Id2Label
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleOpenAPI(c *gin.Context) {
	c.JSON(http.StatusOK, buildOpenAPISpec(s.state.Kind))
}

// predictRequestBody mirrors the request JSON contract: {inputs, metadata?}.
type predictRequestBody struct {
	Inputs   []string          `json:"inputs"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handlePredict(c *gin.Context) {
	var body predictRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed request body"})
		return
	}

	req := inference.Request{Inputs: body.Inputs, Metadata: body.Metadata}
	ctx := c.Request.Context()

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
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func writeError(c *gin.Context, err error) {
	var inputErr *inference.InputError
	var luaErr *inference.LuaError
	var internalErr *inference.InternalError
	var configErr *inference.ConfigError

	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.As(err, &inputErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &luaErr):
		status = http.StatusInternalServerError
	case errors.As(err, &internalErr):
		status = http.StatusInternalServerError
	case errors.As(err, &configErr):
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": message})
}

func buildOpenAPISpec(kind container.ModelKind) json.RawMessage {
	spec := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "encoderfile",
			"version": "1",
		},
		"paths": map[string]any{
			"/predict": map[string]any{
				"post": map[string]any{
					"summary": "Run inference for " + kind.String(),
					"requestBody": map[string]any{
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"inputs":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
										"metadata": map[string]any{"type": "object"},
									},
								},
							},
						},
					},
				},
			},
			"/health": map[string]any{"get": map[string]any{"summary": "Health check"}},
			"/model":  map[string]any{"get": map[string]any{"summary": "Model identity"}},
		},
	}
	raw, _ := json.Marshal(spec)
	return raw
}
