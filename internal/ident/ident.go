// Package ident turns arbitrary strings into TypeScript-safe type names and
// keeps those names unique within one document.
package ident

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultName is used when a candidate synthesizes to the empty string.
const DefaultName = "NoName"

var (
	illegalChars   = regexp.MustCompile(`(^\s*[^a-zA-Z_$])|([^a-zA-Z_$\d])`)
	leadingSnake   = regexp.MustCompile(`^_[a-z]`)
	innerSnake     = regexp.MustCompile(`_[a-z]`)
	afterDigitRun  = regexp.MustCompile(`[\d$]+[a-zA-Z]`)
	afterSpaceRun  = regexp.MustCompile(`\s+[a-zA-Z]`)
	whitespace     = regexp.MustCompile(`\s`)
	leadingDigits  = regexp.MustCompile(`^\d+`)
	identStartChar = regexp.MustCompile(`^[a-zA-Z_$]`)
)

// Letters that do not decompose under NFD but still have a plain Latin form.
var ligatures = strings.NewReplacer(
	"Æ", "Ae", "æ", "ae",
	"Œ", "Oe", "œ", "oe",
	"Ø", "O", "ø", "o",
	"Đ", "D", "đ", "d",
	"Ð", "D", "ð", "d",
	"Ł", "L", "ł", "l",
	"Þ", "Th", "þ", "th",
	"ß", "ss",
	"ı", "i",
)

// Deburr strips diacritics, reducing accented Latin letters to their base form.
func Deburr(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return ligatures.Replace(out)
}

// ToSafeIdentifier converts raw into a string usable as a TypeScript type
// name. The result always starts with a letter, '_' or '$', and may be empty
// when raw holds no usable characters. Applying it twice changes nothing.
func ToSafeIdentifier(raw string) string {
	s := Deburr(raw)
	s = illegalChars.ReplaceAllString(s, " ")
	s = leadingSnake.ReplaceAllStringFunc(s, strings.ToUpper)
	s = innerSnake.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ToUpper(m[1:])
	})
	s = afterDigitRun.ReplaceAllStringFunc(s, strings.ToUpper)
	s = afterSpaceRun.ReplaceAllStringFunc(s, func(m string) string {
		return strings.TrimSpace(strings.ToUpper(m))
	})
	s = whitespace.ReplaceAllString(s, "")
	// a digit run left at the front by a dropped separator cannot start a name
	s = leadingDigits.ReplaceAllString(s, "")
	return upperFirst(s)
}

// IsIdentifierStart reports whether s begins with a character allowed at the
// start of a TypeScript identifier.
func IsIdentifierStart(s string) bool {
	return identStartChar.MatchString(s)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Names hands out unique names. Comparison ignores case so that the
// lowercase ids derived from the names stay unique as well.
type Names struct {
	used map[string]struct{}
}

// NewNames returns an empty registry.
func NewNames() *Names {
	return &Names{used: make(map[string]struct{})}
}

// Reserve returns name, or name followed by the smallest positive integer
// that makes it unique, and keeps the result reserved.
func (n *Names) Reserve(name string) string {
	if name == "" {
		name = DefaultName
	}
	candidate := name
	for i := 1; n.Has(candidate); i++ {
		candidate = name + strconv.Itoa(i)
	}
	n.used[strings.ToLower(candidate)] = struct{}{}
	return candidate
}

// Has reports whether name is already reserved.
func (n *Names) Has(name string) bool {
	_, ok := n.used[strings.ToLower(name)]
	return ok
}

// Len returns the number of reserved names.
func (n *Names) Len() int { return len(n.used) }
