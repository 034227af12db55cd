package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jonathan/skillsense/internal/config"
	"github.com/jonathan/skillsense/internal/types"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	flags      config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "skillsense",
		Short: "Skill extraction and gap analysis",
		Long: `SkillSense maps free text such as a resume or profile summary onto a canonical skill
ontology and compares the result with the requirements of a target role.

Configuration can be loaded from a JSON or YAML file using --config. Environment variables
fill values the file leaves empty, and command-line flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Path to a JSON or YAML config file")
	f.StringVar(&opts.flags.Ontology, "ontology", "", "Ontology file (defaults to the bundled catalog)")
	f.StringVar(&opts.flags.Index, "index", "", "Precomputed embedding index file")
	f.StringVarP(&opts.flags.Mode, "mode", "m", "", "Matching mode: fast or semantic")
	f.Float64Var(&opts.flags.Threshold, "threshold", 0, "Semantic similarity threshold in [0,1]")
	f.IntVar(&opts.flags.TopK, "top-k", 0, "Neighbours considered per phrase in semantic mode")
	f.IntVar(&opts.flags.Workers, "workers", 0, "Concurrent match calls per request")
	f.IntVar(&opts.flags.MaxPhrases, "max-phrases", 0, "Cap on phrases sent to the semantic matcher (0 = no cap)")
	f.StringVar(&opts.flags.Provider, "provider", "", "Embedding provider: local, gemini or openai")
	f.StringVar(&opts.flags.Model, "model", "", "Embedding model name")
	f.IntVar(&opts.flags.Dimension, "dimension", 0, "Embedding dimension")
	f.StringVar(&opts.flags.APIKey, "api-key", "", "Embedding API key (defaults to GEMINI_API_KEY or OPENAI_API_KEY)")
	f.StringVar(&opts.flags.DatabaseURL, "db-url", "", "PostgreSQL URL holding a stored index (defaults to DATABASE_URL)")
	f.BoolVarP(&opts.flags.Verbose, "verbose", "v", false, "Log progress to stderr")

	cmd.AddCommand(
		newExtractCmd(opts),
		newAnalyzeCmd(opts),
		newRolesCmd(opts),
		newValidateOntologyCmd(opts),
		newBuildIndexCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// resolve builds the effective configuration: file, then flags, then environment for
// whatever is still empty, then defaults.
func (o *rootOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = *loaded
	}

	o.applyFlags(cmd, &cfg)
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return config.Config{}, err
	}
	cfg = cfg.MergeWithDefaults(config.Defaults())
	// Again after defaults, so an explicit zero survives the merge.
	o.applyFlags(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func (o *rootOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ontology") {
		cfg.Ontology = o.flags.Ontology
	}
	if flags.Changed("index") {
		cfg.Index = o.flags.Index
	}
	if flags.Changed("mode") {
		cfg.Mode = strings.ToLower(o.flags.Mode)
	}
	if flags.Changed("threshold") {
		cfg.Threshold = o.flags.Threshold
	}
	if flags.Changed("top-k") {
		cfg.TopK = o.flags.TopK
	}
	if flags.Changed("workers") {
		cfg.Workers = o.flags.Workers
	}
	if flags.Changed("max-phrases") {
		cfg.MaxPhrases = o.flags.MaxPhrases
	}
	if flags.Changed("provider") {
		cfg.Provider = strings.ToLower(o.flags.Provider)
	}
	if flags.Changed("model") {
		cfg.Model = o.flags.Model
	}
	if flags.Changed("dimension") {
		cfg.Dimension = o.flags.Dimension
	}
	if flags.Changed("api-key") {
		cfg.APIKey = o.flags.APIKey
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = o.flags.DatabaseURL
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.flags.Verbose
	}
}

// newLogger writes to stderr; only warnings unless verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// inputOptions selects where document text comes from.
type inputOptions struct {
	text string
	file string
}

func (in *inputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&in.text, "text", "t", "", "Text to analyze")
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "File to analyze (\"-\" for stdin)")
}

// read returns the document text. Without --text or --file it reads piped stdin.
// No text at all is types.ErrEmptyInput; whitespace is a valid, empty document.
func (in *inputOptions) read(cmd *cobra.Command) (string, error) {
	if in.text != "" && in.file != "" {
		return "", fmt.Errorf("--text and --file are mutually exclusive")
	}
	if in.text != "" {
		return in.text, nil
	}

	var r io.Reader
	switch in.file {
	case "", "-":
		r = cmd.InOrStdin()
		if f, ok := r.(*os.File); ok && in.file == "" {
			info, err := f.Stat()
			if err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return "", types.ErrEmptyInput
			}
		}
	default:
		data, err := os.ReadFile(in.file)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		if len(data) == 0 {
			return "", types.ErrEmptyInput
		}
		return string(data), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return "", types.ErrEmptyInput
	}
	return string(data), nil
}

// checkFormat rejects output formats a command does not support.
func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown --format %q (want %s)", format, strings.Join(allowed, ", "))
}
