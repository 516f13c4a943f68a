package tssplit

import (
	"fmt"
	"regexp"
	"strings"

	goerrors "github.com/go-errors/errors"
)

var declPattern = regexp.MustCompile(`(?m)^export\s+(interface|type|enum|const\s+enum)\s+([A-Za-z_$][\w$]*)`)

// Declaration is one exported declaration.
type Declaration struct {
	Keyword string
	Title   string
	Code    string
}

// Splitter yields declarations in order of appearance. It consumes its input
// and cannot be restarted.
type Splitter struct {
	source string
	done   bool
}

// New returns a splitter over source.
func New(source string) *Splitter {
	return &Splitter{source: source}
}

// Next returns the next declaration. The boolean is false once the source
// is exhausted. A declaration body without balanced braces is an error that
// carries a stack trace.
func (s *Splitter) Next() (Declaration, bool, error) {
	if s.done {
		return Declaration{}, false, nil
	}
	m := declPattern.FindStringSubmatchIndex(s.source)
	if m == nil {
		s.done = true
		s.source = ""
		return Declaration{}, false, nil
	}
	keyword := strings.Join(strings.Fields(s.source[m[2]:m[3]]), " ")
	title := s.source[m[4]:m[5]]
	start := BacktrackLeadingComment(s.source, m[0])

	var end int
	if keyword == "type" {
		end = len(s.source)
		if next := declPattern.FindStringIndex(s.source[m[1]:]); next != nil {
			end = BacktrackLeadingComment(s.source, m[1]+next[0])
		}
	} else {
		_, closing, err := LocateBalancedBraces(s.source[m[1]:])
		if err != nil {
			s.done = true
			return Declaration{}, false, goerrors.Wrap(fmt.Errorf("%s %s: %w", keyword, title, err), 1)
		}
		end = m[1] + closing + 1
	}

	d := Declaration{Keyword: keyword, Title: title, Code: strings.TrimSpace(s.source[start:end])}
	s.source = s.source[end:]
	return d, true, nil
}

// All drains the splitter.
func (s *Splitter) All() ([]Declaration, error) {
	var out []Declaration
	for {
		d, ok, err := s.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, d)
	}
}
