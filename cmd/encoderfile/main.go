// Command encoderfile is the build-time tool that seals a model's weights,
// config, tokenizer, and optional transform script onto a prebuilt runtime
// binary, producing a single self-contained executable.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/encoderfile/encoderfile/internal/container"
	"github.com/encoderfile/encoderfile/internal/modelconfig"
	"github.com/encoderfile/encoderfile/internal/transform"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "encoderfile",
		Short: "Build self-contained encoder inference binaries",
		Long:  "encoderfile seals model assets onto a runtime binary, producing a single executable that serves inference with no external model files.",
	}
	root.AddCommand(newBuildCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	var (
		weightsPath   string
		configPath    string
		tokenizerPath string
		transformPath string
		modelName     string
		modelType     string
		basePath      string
		outputPath    string
		version       string
		validate      bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Seal model assets onto a runtime binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(buildOptions{
				weightsPath:   weightsPath,
				configPath:    configPath,
				tokenizerPath: tokenizerPath,
				transformPath: transformPath,
				modelName:     modelName,
				modelType:     modelType,
				basePath:      basePath,
				outputPath:    outputPath,
				version:       version,
				validate:      validate,
			})
		},
	}

	cmd.Flags().StringVar(&weightsPath, "weights", "", "path to the ONNX model weights (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to the model config JSON (required)")
	cmd.Flags().StringVar(&tokenizerPath, "tokenizer", "", "path to the tokenizer.json (required)")
	cmd.Flags().StringVar(&transformPath, "transform", "", "path to an optional Lua postprocess script")
	cmd.Flags().StringVar(&modelName, "model-name", "", "human-readable model identifier embedded in the manifest (required)")
	cmd.Flags().StringVar(&modelType, "model-type", "", "one of embedding, sequence-classification, token-classification, sentence-embedding (required)")
	cmd.Flags().StringVar(&basePath, "base", "", "path to the prebuilt encoderfile-runtime binary to seal assets onto (required)")
	cmd.Flags().StringVar(&outputPath, "output", "", "path to write the sealed binary to (required)")
	cmd.Flags().StringVar(&version, "version", "0.0.0", "version string embedded in the manifest")
	cmd.Flags().BoolVar(&validate, "validate-transform", true, "dry-run the transform script's Postprocess against a synthetic tensor before sealing the container")

	for _, name := range []string{"weights", "config", "tokenizer", "model-name", "model-type", "base", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

type buildOptions struct {
	weightsPath   string
	configPath    string
	tokenizerPath string
	transformPath string
	modelName     string
	modelType     string
	basePath      string
	outputPath    string
	version       string
	validate      bool
}

func runBuild(opts buildOptions) error {
	modelKind, err := container.ParseModelKind(opts.modelType)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if opts.validate && opts.transformPath != "" {
		if err := validateBuild(modelKind, opts); err != nil {
			return fmt.Errorf("build: %w", err)
		}
	}

	assets := []container.PlannedAsset{}
	for kind, path := range map[container.AssetKind]string{
		container.ModelWeights: opts.weightsPath,
		container.ModelConfig:  opts.configPath,
		container.Tokenizer:    opts.tokenizerPath,
	} {
		planned, err := container.NewPlannedAsset(kind, container.FileSource{Path: path})
		if err != nil {
			return fmt.Errorf("build: plan %s asset %q: %w", kind, path, err)
		}
		assets = append(assets, planned)
	}

	if opts.transformPath != "" {
		planned, err := container.NewPlannedAsset(container.Transform, container.FileSource{Path: opts.transformPath})
		if err != nil {
			return fmt.Errorf("build: plan transform asset %q: %w", opts.transformPath, err)
		}
		assets = append(assets, planned)
	}

	plan, err := container.NewAssetPlan(modelKind, assets)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	base, err := os.Open(opts.basePath)
	if err != nil {
		return fmt.Errorf("build: open base binary: %w", err)
	}
	defer base.Close()

	out, err := os.OpenFile(opts.outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("build: create output: %w", err)
	}
	defer out.Close()

	params := container.WriteParams{
		ModelName: opts.modelName,
		Version:   opts.version,
		ModelType: modelKind,
		Backend:   container.BackendONNX,
		Plan:      plan,
	}
	if err := container.Write(base, params, out); err != nil {
		return fmt.Errorf("build: seal container: %w", err)
	}

	fmt.Printf("wrote %s (%s, %s)\n", opts.outputPath, modelKind, opts.modelName)
	return nil
}

// validateBuild dry-runs the transform script's Postprocess function against
// a synthetic tensor of the shape the model kind's real ONNX output would
// have, so a broken script fails here instead of on a sealed container's
// first real inference request. Disabled with --validate-transform=false.
func validateBuild(modelKind container.ModelKind, opts buildOptions) error {
	rawConfig, err := os.ReadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("read config for validation: %w", err)
	}
	cfg, err := modelconfig.Parse(rawConfig)
	if err != nil {
		return fmt.Errorf("parse config for validation: %w", err)
	}
	if err := cfg.ValidateLabelCompleteness(cfg.NumLabels()); err != nil {
		return fmt.Errorf("validate label completeness: %w", err)
	}

	src, err := os.ReadFile(opts.transformPath)
	if err != nil {
		return fmt.Errorf("read transform for validation: %w", err)
	}
	engine, err := transform.NewEngine(string(src))
	if err != nil {
		return fmt.Errorf("load transform for validation: %w", err)
	}
	defer engine.Close()

	if err := transform.Validate(modelKind, engine, cfg.NumLabels()); err != nil {
		return err
	}
	return nil
}
