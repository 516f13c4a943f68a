package spec

import (
	"regexp"
	"strings"

	"github.com/mark3labs/tsapidocs/internal/codegen"
	"github.com/mark3labs/tsapidocs/internal/tssplit"
)

var exportedTitle = regexp.MustCompile(`(?m)^(\s*export\s+(?:interface|type|enum|const\s+enum)\s+)([A-Za-z_$][\w$]*)(\s+)`)

// ExtractModels splits compiled source into one model per exported
// declaration. The synthetic wrapper is skipped. Declarations of
// auto-generated schemas export their name with a leading underscore.
func ExtractModels(source string, norm *Normalized) ([]*Model, error) {
	sp := tssplit.New(source)
	skip := codegen.TopLevelID()
	seen := map[string]bool{}
	var models []*Model
	for {
		decl, ok, err := sp.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		id := strings.ToLower(decl.Title)
		if id == skip || seen[id] {
			continue
		}
		seen[id] = true

		m := &Model{ID: id, Title: decl.Title, Code: decl.Code, Dependencies: []string{}}
		if norm != nil {
			if ns, ok := norm.Lookup(id); ok {
				m.AutoGenerated = ns.AutoGenerated
				m.Dependencies = append(m.Dependencies, ns.Dependencies...)
			}
		}
		if m.AutoGenerated {
			m.Code = prefixTitle(m.Code)
		}
		m.Code = strings.TrimRight(m.Code, "\n") + "\n"
		models = append(models, m)
	}
	return models, nil
}

// prefixTitle inserts "_" before the first exported name in code.
func prefixTitle(code string) string {
	loc := exportedTitle.FindStringSubmatchIndex(code)
	if loc == nil {
		return code
	}
	at := loc[4]
	return code[:at] + "_" + code[at:]
}
