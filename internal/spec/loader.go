package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	yamljson "github.com/invopop/yaml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/tsapidocs/internal/docorder"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
	ResolutionError ErrorCode = "ResolutionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs controls whether file refs are followed. It is implied when
	// the root input is a local file, so multi-file specs work.
	AllowFileRefs bool
	// UpgradeLegacy converts Swagger 2.0 input to OpenAPI 3 instead of keeping
	// the legacy shape.
	UpgradeLegacy bool
	Logger        logrus.FieldLogger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Logger:      discardLogger(),
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithUpgradeLegacy(up bool) Option       { return func(s *Settings) { s.UpgradeLegacy = up } }

// WithLogger routes loader diagnostics to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Load reads and dereferences an API description. OpenAPI 3 documents are
// validated permissively; Swagger 2.0 documents keep their shape unless
// WithUpgradeLegacy is set.
//
// input may be a filesystem path or an http/https URL. file:// URLs are
// blocked.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}
	settings := settingsFrom(opts)

	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""
	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return decode(ctx, raw, input, u, false, settings)
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return decode(ctx, raw, abs, &url.URL{Path: filepath.ToSlash(abs)}, true, settings)
}

// LoadData decodes document bytes. location names the source in errors and
// anchors relative file references; it may be empty.
func LoadData(ctx context.Context, data []byte, location string, opts ...Option) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &SpecError{Code: InputError, Message: "spec: document is empty", Location: location}
	}
	settings := settingsFrom(opts)
	var base *url.URL
	if location != "" {
		base = &url.URL{Path: filepath.ToSlash(location)}
	}
	return decode(ctx, data, location, base, false, settings)
}

func settingsFrom(opts []Option) Settings {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

func decode(ctx context.Context, raw []byte, location string, base *url.URL, rootIsFile bool, settings Settings) (*Document, error) {
	log := settings.Logger.WithField("location", location)
	version, err := detectSpecVersion(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}

	switch version {
	case 3:
		order, err := docorder.Parse(raw)
		if err != nil {
			return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
		}
		loader := newLoader(settings, rootIsFile)
		loader.Context = ctx
		var doc *openapi3.T
		if base != nil {
			doc, err = loader.LoadFromDataWithPath(raw, base)
		} else {
			doc, err = loader.LoadFromData(raw)
		}
		if err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
		if err := doc.Validate(ctx); err != nil {
			if !canProceedDespiteValidation(err) {
				return nil, mapValidateOrParseErr(err, location)
			}
			log.WithError(err).Warn("proceeding despite validation error")
		}
		log.WithField("version", doc.OpenAPI).Debug("loaded OpenAPI document")
		return &Document{Location: location, V3: doc, order: order}, nil

	case 2:
		if settings.UpgradeLegacy {
			return upgradeLegacy(ctx, raw, location, settings)
		}
		order, err := docorder.Parse(raw)
		if err != nil {
			return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
		}
		v2, err := decodeLegacy(raw)
		if err != nil {
			return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("decode swagger: %v", err), Location: location, Cause: err}
		}
		if err := validateLegacy(v2); err != nil {
			err.Location = location
			return nil, err
		}
		if err := resolveLegacyRefs(v2); err != nil {
			var se *SpecError
			if errors.As(err, &se) {
				se.Location = location
			}
			return nil, err
		}
		log.WithField("definitions", len(v2.Definitions)).Debug("loaded Swagger document")
		return &Document{Location: location, V2: v2, order: order}, nil

	default:
		return nil, &SpecError{Code: ParseError, Message: "spec: unknown or unsupported OpenAPI/Swagger version", Location: location}
	}
}

func upgradeLegacy(ctx context.Context, raw []byte, location string, settings Settings) (*Document, error) {
	log := settings.Logger.WithField("location", location)
	fixed, changed, err := preprocessV2ForCompatibility(raw)
	if err != nil {
		log.WithError(err).Warn("skipping swagger compatibility rewrite")
	} else if changed {
		log.Debug("rewrote swagger operations for conversion")
		raw = fixed
	}
	order, err := docorder.Parse(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	v2, err := decodeLegacy(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("decode swagger: %v", err), Location: location, Cause: err}
	}
	if serr := validateLegacy(v2); serr != nil {
		serr.Location = location
		return nil, serr
	}
	v3doc, err := openapi2conv.ToV3(v2)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
	}
	loader := newLoader(settings, false)
	loader.Context = ctx
	if err := loader.ResolveRefsIn(v3doc, nil); err != nil {
		return nil, &SpecError{Code: ResolutionError, Message: fmt.Sprintf("resolve refs after conversion: %v", err), Location: location, Cause: err}
	}
	if err := v3doc.Validate(ctx); err != nil {
		if !canProceedDespiteValidation(err) {
			return nil, mapValidateOrParseErr(err, location)
		}
		log.WithError(err).Warn("proceeding despite validation error")
	}
	order.Alias("/components/schemas", "/definitions")
	order.Alias("/components/responses", "/responses")
	return &Document{Location: location, V3: v3doc, Upgraded: true, order: order}, nil
}

// decodeLegacy goes through JSON so openapi2's $ref-aware decoders run.
func decodeLegacy(raw []byte) (*openapi2.T, error) {
	data, err := yamljson.YAMLToJSON(raw)
	if err != nil {
		return nil, err
	}
	var doc openapi2.T
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &doc, nil
}

func validateLegacy(doc *openapi2.T) *SpecError {
	if strings.TrimSpace(doc.Info.Title) == "" || strings.TrimSpace(doc.Info.Version) == "" {
		return &SpecError{Code: ValidationError, Message: "swagger: info.title and info.version are required", JSONPointer: "#/info"}
	}
	return nil
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	// Allow file refs only when configured or when loading from a local file root.
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	log := settings.Logger.WithField("url", rawURL)
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		body, retry, err := fetchOnce(client, req)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		log.WithError(err).WithField("attempt", i+1).Debug("fetch failed")
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

// fetchOnce reports whether a failure is transient.
func fetchOnce(client *http.Client, req *http.Request) ([]byte, bool, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		return body, false, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	msg := strings.ToLower(err.Error())
	// some loader errors are really parse errors
	if strings.Contains(msg, "parse") || strings.Contains(msg, "invalid character") || strings.Contains(msg, "unmarshal") {
		code = ParseError
	}
	if strings.Contains(msg, "bad data in") || strings.Contains(msg, "failed to resolve") || strings.Contains(msg, "error resolving reference") {
		code = ResolutionError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation reports validation errors a best-effort build
// survives, e.g. unresolved $ref entries.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
