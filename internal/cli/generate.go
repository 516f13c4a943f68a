package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/tsapidocs"
	"github.com/mark3labs/tsapidocs/internal/codegen"
	"github.com/mark3labs/tsapidocs/internal/emitter/tsemitter"
	"github.com/mark3labs/tsapidocs/internal/jsonschema"
	"github.com/mark3labs/tsapidocs/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input         string
	Out           string
	Bundle        bool
	UpgradeLegacy bool
	EmitSchema    string
	IncludeTags   []string
	ExcludeTags   []string
	Methods       []string
	Paths         []string
	ConfigPath    string
	DryRun        bool
	Force         bool
	Verbose       bool
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate TypeScript models from an OpenAPI/Swagger document",
		Long: "Generate TypeScript models from an OpenAPI/Swagger document. " +
			"Without --out the result is printed as JSON. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  tsapidocs generate --input spec.yaml --out ./models
  tsapidocs --config tsapidocs.yaml generate --bundle --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("out", "", "Output directory; prints the result as JSON when omitted")
	flags.Bool("bundle", false, "Write a single models.ts instead of one file per model")
	flags.Bool("upgrade-legacy", false, "Convert Swagger 2.0 input to OpenAPI 3 before compiling")
	flags.String("emit-schema", "", "Also write the intermediate JSON Schema to this file")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching one of these regular expressions")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	var cfg GenerateConfig

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(cmd.Name()); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{"input": &cfg.Input, "out": &cfg.Out, "emit-schema": &cfg.EmitSchema}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}
	bools := map[string]*bool{
		"bundle":         &cfg.Bundle,
		"upgrade-legacy": &cfg.UpgradeLegacy,
		"dry-run":        &cfg.DryRun,
		"force":          &cfg.Force,
		"verbose":        &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}
	slices := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
		"methods":      &cfg.Methods,
		"paths":        &cfg.Paths,
	}
	for name, dst := range slices {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeTags(value)
	}
	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.EmitSchema = strings.TrimSpace(c.EmitSchema)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	for i, m := range c.Methods {
		c.Methods[i] = strings.ToLower(m)
	}
	c.Methods = sanitizeTags(c.Methods)
	c.Paths = sanitizeTags(c.Paths)
}

func (c *GenerateConfig) validate(command string) error {
	if c.Input == "" {
		return newUsageError(fmt.Sprintf("%s: --input is required (set via flag or config file)", command))
	}
	if command == "generate" && c.Bundle && c.Out == "" {
		return newUsageError(fmt.Sprintf("%s: --bundle requires --out", command))
	}
	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("%s: include/exclude tags overlap: %s", command, strings.Join(overlap, ", ")))
	}
	for _, m := range c.Methods {
		if _, err := spec.ParseMethod(m); err != nil {
			return newUsageError(fmt.Sprintf("%s: --methods: %v", command, err))
		}
	}
	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("%s: --paths: invalid pattern %q: %v", command, p, err))
		}
	}
	return nil
}

func (c *GenerateConfig) parseOptions(log logrus.FieldLogger) []tsapidocs.Option {
	return []tsapidocs.Option{
		tsapidocs.WithLogger(log),
		tsapidocs.WithIncludeTags(c.IncludeTags...),
		tsapidocs.WithExcludeTags(c.ExcludeTags...),
		tsapidocs.WithMethods(c.Methods...),
		tsapidocs.WithPathPatterns(c.Paths...),
	}
}

func (c *GenerateConfig) buildOptions() []spec.BuildOption {
	return []spec.BuildOption{
		spec.WithIncludeTags(c.IncludeTags),
		spec.WithExcludeTags(c.ExcludeTags),
		spec.WithMethods(c.Methods),
		spec.WithPathPatterns(c.Paths),
	}
}

// loadDocument loads cfg.Input, mapping structured spec errors into friendly
// usage errors.
func loadDocument(ctx context.Context, cfg *GenerateConfig, log logrus.FieldLogger) (*spec.Document, error) {
	doc, err := spec.Load(ctx, cfg.Input, spec.WithUpgradeLegacy(cfg.UpgradeLegacy), spec.WithLogger(log))
	if err != nil {
		return nil, specUsageError(err)
	}
	return doc, nil
}

func specUsageError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := newLogger(os.Stderr, cfg.Verbose)

	// 1) Load the document (file or http/https URL)
	doc, err := loadDocument(ctx, cfg, log)
	if err != nil {
		return err
	}

	// 2) Compile models and endpoints
	res, err := tsapidocs.Parse(ctx, doc, cfg.parseOptions(log)...)
	if err != nil {
		if errors.Is(err, codegen.ErrGeneration) {
			return fmt.Errorf("generate: %w", err)
		}
		return specUsageError(err)
	}

	if cfg.EmitSchema != "" {
		if err := writeSchema(doc, cfg); err != nil {
			return err
		}
		log.WithField("path", cfg.EmitSchema).Debug("wrote intermediate schema")
	}

	// 3) Print or emit
	if cfg.Out == "" {
		out, err := json.Marshal(res, json.Deterministic(true), jsontext.WithIndent("  "))
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Fprintf(os.Stdout, "%s\n", out)
		return nil
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}
	plan, err := tsemitter.Emit(ctx, res, tsemitter.Options{
		OutDir:  cfg.Out,
		Bundle:  cfg.Bundle,
		Force:   cfg.Force,
		DryRun:  cfg.DryRun,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	paths := make([]string, 0, len(plan.Planned))
	for _, p := range plan.Planned {
		paths = append(paths, p.RelPath)
	}
	if cfg.DryRun {
		printPlan(absOut, len(paths), paths)
		return nil
	}
	if cfg.Verbose {
		for _, p := range paths {
			log.WithField("file", p).Debug("wrote")
		}
	}
	fmt.Fprintf(os.Stdout, "Wrote %d models to %s\n", len(res.Models), absOut)
	return nil
}

// writeSchema writes the wrapper schema handed to the code generator.
func writeSchema(doc *spec.Document, cfg *GenerateConfig) error {
	norm, err := spec.Normalize(doc, cfg.buildOptions()...)
	if err != nil {
		return specUsageError(err)
	}
	data, err := jsonschema.Marshal(codegen.BuildRoot(norm.Definitions()), "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if cfg.DryRun {
		fmt.Fprintf(os.Stdout, "Planned schema write to %s (%d bytes)\n", cfg.EmitSchema, len(data)+1)
		return nil
	}
	if err := os.WriteFile(cfg.EmitSchema, append(data, '\n'), 0o644); err != nil {
		return wrapOutputError(fmt.Errorf("write schema: %w", err), cfg.EmitSchema)
	}
	return nil
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		var err error
		switch normalizeKey(key) {
		case "input":
			cfg.Input, err = valueAsString(value)
		case "out":
			cfg.Out, err = valueAsString(value)
		case "emitschema":
			cfg.EmitSchema, err = valueAsString(value)
		case "includetags":
			cfg.IncludeTags, err = valueAsStringSlice(value)
		case "excludetags":
			cfg.ExcludeTags, err = valueAsStringSlice(value)
		case "methods":
			cfg.Methods, err = valueAsStringSlice(value)
		case "paths":
			cfg.Paths, err = valueAsStringSlice(value)
		case "bundle":
			cfg.Bundle, err = valueAsBool(value)
		case "upgradelegacy":
			cfg.UpgradeLegacy, err = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "force":
			cfg.Force, err = valueAsBool(value)
		case "verbose":
			cfg.Verbose, err = valueAsBool(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
