// Command encoderfile-runtime is the base binary that build-time tooling
// seals model assets onto. Run directly it decodes its own trailing
// container and serves the embedded model over HTTP, gRPC, the MCP tool
// protocol, or a one-shot CLI batch.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpccreds "google.golang.org/grpc/credentials"

	"github.com/encoderfile/encoderfile/internal/bootstrap"
	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/inference"
	"github.com/encoderfile/encoderfile/internal/serve/grpcserve"
	"github.com/encoderfile/encoderfile/internal/serve/httpserve"
	"github.com/encoderfile/encoderfile/internal/serve/mcpserve"
	"github.com/encoderfile/encoderfile/internal/telemetry"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if err := newRootCmd(log).Execute(); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func newRootCmd(log zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "encoderfile-runtime",
		Short: "Serve or run inference against the model embedded in this binary",
	}
	root.AddCommand(newServeCmd(log))
	root.AddCommand(newInferCmd(log))
	root.AddCommand(newMCPCmd(log))
	return root
}

// --- serve ---

type serveOptions struct {
	grpcHostname    string
	grpcPort        int
	httpHostname    string
	httpPort        int
	disableGRPC     bool
	disableHTTP     bool
	enableOtel      bool
	otelExporterURL string
	certFile        string
	keyFile         string
}

func newServeCmd(log zerolog.Logger) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the embedded model over HTTP and gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), log, opts)
		},
	}
	cmd.Flags().StringVar(&opts.grpcHostname, "grpc-hostname", "0.0.0.0", "gRPC bind hostname")
	cmd.Flags().IntVar(&opts.grpcPort, "grpc-port", 50051, "gRPC bind port")
	cmd.Flags().StringVar(&opts.httpHostname, "http-hostname", "0.0.0.0", "HTTP bind hostname")
	cmd.Flags().IntVar(&opts.httpPort, "http-port", 8080, "HTTP bind port")
	cmd.Flags().BoolVar(&opts.disableGRPC, "disable-grpc", false, "disable the gRPC transport")
	cmd.Flags().BoolVar(&opts.disableHTTP, "disable-http", false, "disable the HTTP transport")
	cmd.Flags().BoolVar(&opts.enableOtel, "enable-otel", false, "export traces via OpenTelemetry")
	cmd.Flags().StringVar(&opts.otelExporterURL, "otel-exporter-url", "", "OTLP gRPC exporter endpoint")
	cmd.Flags().StringVar(&opts.certFile, "cert-file", "", "TLS certificate file")
	cmd.Flags().StringVar(&opts.keyFile, "key-file", "", "TLS private key file")
	return cmd
}

func runServe(ctx context.Context, log zerolog.Logger, opts serveOptions) error {
	if opts.disableGRPC && opts.disableHTTP {
		return errors.New("serve: both --disable-grpc and --disable-http set, nothing to serve")
	}
	if (opts.certFile == "") != (opts.keyFile == "") {
		return errors.New("serve: --cert-file and --key-file must both be set or both be empty")
	}

	loaded, err := bootstrap.Load()
	if err != nil {
		return err
	}
	defer loaded.Close()

	shutdownTelemetry, err := telemetry.Bootstrap(ctx, telemetry.Config{
		Enabled:     opts.enableOtel,
		ExporterURL: opts.otelExporterURL,
		ServiceName: "encoderfile",
		ModelID:     loaded.State.ModelID,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tlsConfig *tls.Config
	if opts.certFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.certFile, opts.keyFile)
		if err != nil {
			return fmt.Errorf("serve: load tls keypair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	errCh := make(chan error, 2)
	var httpSrv *http.Server
	var grpcSrv *grpc.Server

	if !opts.disableHTTP {
		hs := httpserve.New(loaded.State, log.With().Str("transport", "http").Logger())
		addr := net.JoinHostPort(opts.httpHostname, fmt.Sprintf("%d", opts.httpPort))
		httpSrv = &http.Server{Addr: addr, Handler: hs.Handler(), TLSConfig: tlsConfig}
		go func() {
			log.Info().Str("addr", addr).Msg("http listening")
			var err error
			if tlsConfig != nil {
				err = httpSrv.ListenAndServeTLS("", "")
			} else {
				err = httpSrv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	if !opts.disableGRPC {
		serverOpts := []grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}
		if tlsConfig != nil {
			serverOpts = append(serverOpts, grpc.Creds(grpccreds.NewTLS(tlsConfig)))
		}
		grpcSrv = grpc.NewServer(serverOpts...)
		grpcserve.New(loaded.State).Register(grpcSrv)
		addr := net.JoinHostPort(opts.grpcHostname, fmt.Sprintf("%d", opts.grpcPort))
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("serve: listen grpc: %w", err)
		}
		go func() {
			log.Info().Str("addr", addr).Msg("grpc listening")
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	return nil
}

// --- infer ---

func newInferCmd(log zerolog.Logger) *cobra.Command {
	var format string
	var outputPath string
	cmd := &cobra.Command{
		Use:   "infer <inputs>...",
		Short: "Run one synchronous inference batch against the embedded model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(cmd.Context(), args, format, outputPath)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (only json is supported)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write output to this path instead of stdout")
	return cmd
}

func runInfer(ctx context.Context, inputs []string, format, outputPath string) error {
	if format != "json" {
		return fmt.Errorf("infer: unsupported format %q", format)
	}

	loaded, err := bootstrap.Load()
	if err != nil {
		return err
	}
	defer loaded.Close()

	req := inference.Request{Inputs: inputs}
	var payload any

	switch loaded.State.Kind {
	case container.Embedding:
		payload, err = inference.RunEmbedding(ctx, loaded.State, req)
	case container.SequenceClassification:
		payload, err = inference.RunSequenceClassification(ctx, loaded.State, req)
	case container.TokenClassification:
		payload, err = inference.RunTokenClassification(ctx, loaded.State, req)
	case container.SentenceEmbedding:
		payload, err = inference.RunSentenceEmbedding(ctx, loaded.State, req)
	default:
		err = &inference.ConfigError{Reason: "unknown model kind"}
	}
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("infer: marshal response: %w", err)
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(append(body, '\n'))
		return err
	}
	return os.WriteFile(outputPath, body, 0o644)
}

// --- mcp ---

func newMCPCmd(log zerolog.Logger) *cobra.Command {
	var hostname string
	var port int
	var certFile, keyFile string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool/streaming protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), log, hostname, port, certFile, keyFile)
		},
	}
	cmd.Flags().StringVar(&hostname, "hostname", "0.0.0.0", "bind hostname")
	cmd.Flags().IntVar(&port, "port", 8081, "bind port")
	cmd.Flags().StringVar(&certFile, "cert-file", "", "TLS certificate file")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "TLS private key file")
	return cmd
}

func runMCP(ctx context.Context, log zerolog.Logger, hostname string, port int, certFile, keyFile string) error {
	if (certFile == "") != (keyFile == "") {
		return errors.New("mcp: --cert-file and --key-file must both be set or both be empty")
	}

	loaded, err := bootstrap.Load()
	if err != nil {
		return err
	}
	defer loaded.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcpserve.New(loaded.State)
	addr := net.JoinHostPort(hostname, fmt.Sprintf("%d", port))
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("mcp listening")
		var err error
		if certFile != "" {
			err = httpSrv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
