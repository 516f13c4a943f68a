package tsemitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/mark3labs/tsapidocs/internal/depgraph"
	"github.com/mark3labs/tsapidocs/internal/spec"
)

// Options controls how a Result is laid out on disk.
type Options struct {
	OutDir  string // required; target directory
	Bundle  bool   // one models.ts instead of models/<id>.ts
	Force   bool   // write into a non-empty directory
	DryRun  bool   // don't write, only plan
	Verbose bool
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result lists the planned files in path order.
type Result struct {
	Planned []PlannedFile
}

const header = "/* eslint-disable */\n"

// Emit renders the models and endpoints of res as TypeScript sources plus an
// endpoints.json index.
func Emit(ctx context.Context, res *spec.Result, opts Options) (*Result, error) {
	if res == nil {
		return nil, fmt.Errorf("tsemitter: nil result")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("tsemitter: OutDir is required")
	}

	files := map[string][]byte{}
	if opts.Bundle {
		files["models.ts"] = []byte(renderBundle(res))
		files["index.ts"] = []byte(header + "export * from \"./models\";\n")
	} else {
		ids := res.ModelIDs()
		for _, id := range ids {
			files[filepath.Join("models", id+".ts")] = []byte(renderModel(res, res.Models[id]))
		}
		files["index.ts"] = []byte(renderIndex(ids))
	}
	endpoints, err := renderEndpoints(res)
	if err != nil {
		return nil, fmt.Errorf("marshal endpoints.json: %w", err)
	}
	files["endpoints.json"] = endpoints

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)
	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: filepath.ToSlash(rel), Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(ctx, opts.OutDir, rels, files, opts.Force); err != nil {
			return nil, err
		}
	}
	return &Result{Planned: planned}, nil
}

// renderModel prefixes a model's code with imports for the dependencies it
// names. Auto-generated models export an underscored symbol, so their
// imports are renamed back to the title the code refers to.
func renderModel(res *spec.Result, m *spec.Model) string {
	var b strings.Builder
	b.WriteString(header)
	var imports []string
	for _, dep := range m.Dependencies {
		d := res.Models[dep]
		if d == nil || !mentions(m.Code, d.Title) {
			continue
		}
		name := d.Title
		if d.AutoGenerated {
			name = d.ExportName() + " as " + d.Title
		}
		imports = append(imports, fmt.Sprintf("import type { %s } from \"./%s\";\n", name, d.ID))
	}
	if len(imports) > 0 {
		for _, line := range imports {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	b.WriteString(m.Code)
	if m.AutoGenerated && mentions(m.Code, m.Title) {
		b.WriteString(alias(m))
	}
	return b.String()
}

// alias declares the plain title of an auto-generated model.
func alias(m *spec.Model) string {
	return fmt.Sprintf("type %s = %s;\n", m.Title, m.ExportName())
}

// renderBundle concatenates every model, dependencies first. Auto-generated
// models referenced by any model, themselves included, get a local alias
// under their plain title.
func renderBundle(res *spec.Result) string {
	deps := make(map[string][]string, len(res.Models))
	referenced := map[string]bool{}
	for id, m := range res.Models {
		deps[id] = m.Dependencies
		for _, d := range m.Dependencies {
			referenced[d] = true
		}
	}
	var b strings.Builder
	b.WriteString(header)
	for _, id := range depgraph.New(deps).Order() {
		m := res.Models[id]
		b.WriteString("\n")
		b.WriteString(m.Code)
		if m.AutoGenerated && (referenced[id] || mentions(m.Code, m.Title)) {
			b.WriteString(alias(m))
		}
	}
	return b.String()
}

func renderIndex(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	var b strings.Builder
	b.WriteString(header)
	for _, id := range sorted {
		fmt.Fprintf(&b, "export * from \"./models/%s\";\n", id)
	}
	return b.String()
}

func renderEndpoints(res *spec.Result) ([]byte, error) {
	list := make([]*spec.Endpoint, 0, len(res.Endpoints))
	for _, id := range res.EndpointIDs() {
		list = append(list, res.Endpoints[id])
	}
	out, err := json.Marshal(list, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func mentions(code, name string) bool {
	return regexp.MustCompile(`(^|[^\w$])` + regexp.QuoteMeta(name) + `($|[^\w$])`).MatchString(code)
}

func writeFiles(ctx context.Context, outDir string, rels []string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("tsemitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(abs, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".tmp-*")
		if err != nil {
			return fmt.Errorf("create temp %s: %w", rel, err)
		}
		_, werr := tmp.Write(files[rel])
		cerr := tmp.Close()
		if werr == nil {
			werr = cerr
		}
		if werr == nil {
			werr = os.Chmod(tmp.Name(), 0o644)
		}
		if werr != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write temp %s: %w", rel, werr)
		}
		if err := os.Rename(tmp.Name(), p); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}
