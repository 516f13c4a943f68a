// Package tssplit slices generated TypeScript source into one record per
// exported declaration. It does not parse TypeScript: it skips comments and
// string literals, balances braces and finds declaration boundaries.
package tssplit

import (
	"errors"
	"strings"
)

// ErrUnbalanced is returned when a brace-delimited declaration has no
// matching closing brace.
var ErrUnbalanced = errors.New("no balanced braces found")

// LocateBalancedBraces returns the index of the first '{' in text outside
// comments and string literals, and the index of the '}' that closes it.
func LocateBalancedBraces(text string) (open, close int, err error) {
	depth := 0
	open = -1
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			i = skipLineComment(text, i)
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i = skipBlockComment(text, i)
		case c == '"' || c == '\'' || c == '`':
			i = skipString(text, i)
		case c == '{':
			if open < 0 {
				open = i
			}
			depth++
		case c == '}':
			if open < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return open, i, nil
			}
		}
	}
	return -1, -1, ErrUnbalanced
}

// BacktrackLeadingComment returns the start of the block comment that ends
// on the line right before index, or index when there is none.
func BacktrackLeadingComment(text string, index int) int {
	before := strings.TrimRight(text[:index], " \t")
	before = strings.TrimSuffix(before, "\n")
	before = strings.TrimSuffix(before, "\r")
	before = strings.TrimRight(before, " \t")
	if !strings.HasSuffix(before, "*/") {
		return index
	}
	if start := closingCommentStart(before); start >= 0 {
		return start
	}
	return index
}

// closingCommentStart finds the block comment that ends exactly at the end
// of s. A comment body cannot contain "*/", so the opener is the first "/*"
// after the previous closer. Only the text between the two is examined.
func closingCommentStart(s string) int {
	body := s[:len(s)-2]
	from := 0
	if prev := strings.LastIndex(body, "*/"); prev >= 0 {
		from = prev + 2
	}
	open := strings.Index(body[from:], "/*")
	if open < 0 {
		return -1
	}
	open += from
	// an opener behind "//" or a quote on its own line is not a comment start
	lineStart := strings.LastIndexByte(s[:open], '\n') + 1
	if strings.ContainsAny(s[lineStart:open], "\"'`") || strings.Contains(s[lineStart:open], "//") {
		return -1
	}
	return open
}

// skipLineComment returns the index of the newline ending the comment at i.
func skipLineComment(text string, i int) int {
	if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
		return i + nl
	}
	return len(text)
}

// skipBlockComment returns the index of the '/' closing the comment at i.
func skipBlockComment(text string, i int) int {
	if end := strings.Index(text[i+2:], "*/"); end >= 0 {
		return i + 2 + end + 1
	}
	return len(text)
}

// skipString returns the index of the quote closing the literal at i.
func skipString(text string, i int) int {
	quote := text[i]
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return len(text)
}
