package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/tsapidocs"
)

var endpointsRunner = runEndpoints

func newEndpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the operations of a document and the models of their bodies",
		Example: strings.TrimSpace(`  tsapidocs endpoints --input spec.yaml
  tsapidocs endpoints --input https://example.com/swagger.json --include-tags public`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return endpointsRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.Bool("upgrade-legacy", false, "Convert Swagger 2.0 input to OpenAPI 3 before compiling")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching one of these regular expressions")
	return cmd
}

func runEndpoints(ctx context.Context, cfg *GenerateConfig) error {
	log := newLogger(os.Stderr, cfg.Verbose)
	doc, err := loadDocument(ctx, cfg, log)
	if err != nil {
		return err
	}
	res, err := tsapidocs.Parse(ctx, doc, cfg.parseOptions(log)...)
	if err != nil {
		return specUsageError(err)
	}
	printEndpoints(os.Stdout, res)
	return nil
}

// printEndpoints writes one "METHOD path -> request / status:model" line per
// endpoint. A dash stands for a missing request model.
func printEndpoints(w io.Writer, res *tsapidocs.Result) {
	for _, id := range res.EndpointIDs() {
		ep := res.Endpoints[id]
		request := ep.RequestModel
		if request == "" {
			request = "-"
		}
		statuses := make([]string, 0, len(ep.ResponseModels))
		for status := range ep.ResponseModels {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		parts := []string{request}
		for _, status := range statuses {
			parts = append(parts, status+":"+ep.ResponseModels[status])
		}
		fmt.Fprintf(w, "%s %s -> %s\n", strings.ToUpper(string(ep.Method)), ep.Path, strings.Join(parts, " / "))
	}
}
