package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	cli "github.com/mark3labs/tsapidocs/internal/cli"
)

const currentSpec = `openapi: 3.0.0
info:
  title: E2E Sample
  version: '1.0.0'
paths:
  /pets:
    get:
      summary: List pets
      tags: [read]
      parameters:
        - in: query
          name: kind
          schema: { $ref: '#/components/schemas/Kind' }
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                type: array
                items: { $ref: '#/components/schemas/Pet' }
    post:
      tags: [write]
      requestBody:
        content:
          application/json:
            schema:
              allOf:
                - $ref: '#/components/schemas/Pet'
                - type: object
                  properties:
                    tags: { type: array, items: { type: string } }
      responses:
        '201':
          description: created
          content:
            application/json:
              schema: { $ref: '#/components/schemas/Pet' }
components:
  schemas:
    Kind:
      type: string
      enum: [cat, dog]
    Pet:
      type: object
      required: [name]
      additionalProperties: false
      properties:
        name: { type: string }
        kind: { $ref: '#/components/schemas/Kind' }
        parent: { $ref: '#/components/schemas/Pet' }
        owner: { $ref: '#/components/schemas/Owner' }
    Owner:
      type: object
      properties:
        pets:
          type: array
          items: { $ref: '#/components/schemas/Pet' }
`

const legacySpec = `swagger: "2.0"
info:
  title: E2E Sample
  version: '1.0.0'
paths:
  /pets:
    post:
      parameters:
        - in: body
          name: body
          schema: { $ref: '#/definitions/Pet' }
      responses:
        '200':
          description: ok
          schema:
            type: object
            properties:
              id: { type: integer }
definitions:
  Pet:
    type: object
    properties:
      name: { type: string }
      status:
        type: string
        enum: [available, sold]
        x-enum-varnames: [Available, Sold]
`

func writeTempSpec(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return p
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("cli execute %v: %v", args, err)
	}
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	var list []string
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		list = append(list, rel)
		// hash path + contents to be robust
		_, _ = h.Write([]byte(rel))
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		_, _ = h.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	sort.Strings(list)
	return list, hex.EncodeToString(h.Sum(nil))
}

func TestE2E_Generate_Deterministic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		spec  string
		extra []string
		want  []string
	}{
		{
			name: "current",
			spec: currentSpec,
			want: []string{"endpoints.json", "index.ts", "models/kind.ts", "models/owner.ts", "models/pet.ts", "models/pets_200_responsebody.ts", "models/pets_requestbody.ts"},
		},
		{
			name:  "current bundle",
			spec:  currentSpec,
			extra: []string{"--bundle"},
			want:  []string{"endpoints.json", "index.ts", "models.ts"},
		},
		{
			name: "legacy",
			spec: legacySpec,
			want: []string{"endpoints.json", "index.ts", "models/pet.ts", "models/pets_200_responsebody.ts"},
		},
		{
			name:  "legacy upgraded",
			spec:  legacySpec,
			extra: []string{"--upgrade-legacy"},
			want:  []string{"endpoints.json", "index.ts", "models/pet.ts", "models/pets_200_responsebody.ts"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := writeTempSpec(t, tt.spec)
			dir1 := t.TempDir()
			dir2 := t.TempDir()

			runCLI(t, append([]string{"generate", "--input", spec, "--out", dir1, "--force"}, tt.extra...)...)
			runCLI(t, append([]string{"generate", "--input", spec, "--out", dir2, "--force"}, tt.extra...)...)

			files1, sum1 := digestDir(t, dir1)
			files2, sum2 := digestDir(t, dir2)
			if !slices.Equal(files1, files2) || sum1 != sum2 {
				t.Fatalf("generated outputs differ between runs\nfiles1=%v\nfiles2=%v\nsum1=%s\nsum2=%s", files1, files2, sum1, sum2)
			}
			if !slices.Equal(files1, tt.want) {
				t.Fatalf("unexpected files %v", files1)
			}
			typecheck(t, dir1)
		})
	}
}

func TestE2E_LegacyAndUpgradedAgreeOnModels(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t, legacySpec)
	legacy := t.TempDir()
	upgraded := t.TempDir()
	runCLI(t, "generate", "--input", spec, "--out", legacy, "--force")
	runCLI(t, "generate", "--input", spec, "--out", upgraded, "--force", "--upgrade-legacy")

	for _, rel := range []string{"models/pet.ts", "models/pets_200_responsebody.ts"} {
		a, err := os.ReadFile(filepath.Join(legacy, rel))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(upgraded, rel))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("%s differs:\n%s\n---\n%s", rel, a, b)
		}
	}
	pet, _ := os.ReadFile(filepath.Join(legacy, "models/pet.ts"))
	if !strings.Contains(string(pet), "export const enum") && !strings.Contains(string(pet), "\"available\" | \"sold\"") {
		t.Fatalf("enum not rendered:\n%s", pet)
	}
}

// typecheck runs tsc over the output when TSAPIDOCS_E2E_ONLINE=1 and a
// TypeScript compiler is on PATH.
func typecheck(t *testing.T, dir string) {
	t.Helper()
	if os.Getenv("TSAPIDOCS_E2E_ONLINE") != "1" || !haveCmd("tsc") {
		return
	}
	files, _ := digestDir(t, dir)
	args := []string{"--noEmit", "--strict"}
	for _, f := range files {
		if strings.HasSuffix(f, ".ts") {
			args = append(args, f)
		}
	}
	if err := runCmdWithTimeout(dir, time.Minute, "tsc", args...); err != nil {
		t.Fatalf("tsc failed: %v", err)
	}
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCmdWithTimeout(dir string, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		// include output for diagnostics
		return &execError{err: err, output: out.String()}
	}
	return nil
}

type execError struct {
	err    error
	output string
}

func (e *execError) Error() string { return e.err.Error() + ": " + e.output }
