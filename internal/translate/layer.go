// Package translate renders patient-facing text into the patient's
// language. Plain text goes through a cached bulk translator; clinically
// sensitive text (speaker labels, dosages) goes through the generative
// model with instructions to leave labels, drug names, and dosages
// untranslated, falling back to the bulk path on failure.
//
// The layer is total: every method returns usable text for any input, with
// the original text as the terminal fallback.
package translate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/internal/resilience"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/types"
)

const (
	// maxBulkChars caps a single bulk translation request.
	maxBulkChars = 4500

	// maxSensitiveChars caps a generative translation request.
	maxSensitiveChars = 3000

	// maxBatchChars caps the combined payload of a batch call; larger
	// batches degrade to per-field translation.
	maxBatchChars = 5000

	// defaultCacheSize bounds the bulk translation cache.
	defaultCacheSize = 256
)

// Bulk is the bulk translator the fast path uses.
type Bulk interface {
	// Translate renders text into the target language, auto-detecting the
	// source.
	Translate(ctx context.Context, text, target string) (string, error)
}

// sensitiveRe flags text that must not go through the bulk translator:
// speaker labels and dosage markers get mangled by machine translation.
var sensitiveRe = regexp.MustCompile(`(?i)(doctor|patient)\s*:|\d+\s*(mg|ml|mcg|g)\b`)

// languageNames maps supported BCP-47 codes to the names used in prompts.
var languageNames = map[string]string{
	"en": "English",
	"ta": "Tamil",
	"hi": "Hindi",
}

// Layer routes translation requests between the bulk and generative paths.
// Both the bulk translator and the provider may be nil; missing backends
// degrade to returning the original text.
type Layer struct {
	bulk        Bulk
	llm         llm.Provider
	cache       *lruCache
	group       singleflight.Group
	breaker     *resilience.CircuitBreaker
	defaultLang string
	metrics     *observe.Metrics
}

// Option is a functional option for configuring a Layer.
type Option func(*Layer)

// WithDefaultLanguage sets the language translation is a no-op for.
// Defaults to "en".
func WithDefaultLanguage(lang string) Option {
	return func(l *Layer) {
		if lang != "" {
			l.defaultLang = lang
		}
	}
}

// WithCacheSize bounds the bulk translation cache. Defaults to 256 entries.
func WithCacheSize(n int) Option {
	return func(l *Layer) {
		if n > 0 {
			l.cache = newLRUCache(n)
		}
	}
}

// WithMetrics sets the metrics instance used to record cache activity and
// translation latency.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Layer) { l.metrics = m }
}

// NewLayer creates a Layer over the given bulk translator and generative
// provider. Either may be nil.
func NewLayer(bulk Bulk, p llm.Provider, opts ...Option) *Layer {
	l := &Layer{
		bulk:        bulk,
		llm:         p,
		cache:       newLRUCache(defaultCacheSize),
		defaultLang: "en",
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "bulk-translator",
		}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Translate renders text into the target language. It is a no-op for the
// default language, an empty target, or empty text. Sensitive text routes
// through the generative model; everything else through the cached bulk
// translator. The original text is the terminal fallback on any failure.
func (l *Layer) Translate(ctx context.Context, text, target string) string {
	if target == "" || target == l.defaultLang || strings.TrimSpace(text) == "" {
		return text
	}

	if IsSensitive(text) && l.llm != nil {
		if out := l.translateSensitive(ctx, text, target); out != "" {
			return out
		}
	}
	return l.translateBulk(ctx, text, target)
}

// TranslateBatch renders multiple named fields in one generative call,
// joining them with section delimiters and splitting the response back by
// field name. A field whose delimiter cannot be found in the response keeps
// its original value; the result always carries exactly the input's keys.
func (l *Layer) TranslateBatch(ctx context.Context, fields map[string]string, target string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	if target == "" || target == l.defaultLang || len(fields) == 0 {
		return out
	}

	keys := make([]string, 0, len(fields))
	total := 0
	for k, v := range fields {
		keys = append(keys, k)
		total += len(v)
	}
	sort.Strings(keys)

	if l.llm == nil || total > maxBatchChars {
		for _, k := range keys {
			out[k] = l.Translate(ctx, fields[k], target)
		}
		return out
	}

	var payload strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&payload, "### %s ###\n%s\n", k, fields[k])
	}

	prompt := fmt.Sprintf(
		"Translate the text below into %s. The \"### name ###\" lines are section "+
			"markers: keep every marker exactly as written and in the same order. "+
			"Keep drug names, dosages (such as 500mg), and speaker labels exactly as "+
			"written. Return only the translated sections with their markers.\n\n%s",
		languageName(target), payload.String())

	resp, err := l.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		observe.Logger(ctx).Debug("batch translation failed, translating per field", "error", err)
		for _, k := range keys {
			out[k] = l.Translate(ctx, fields[k], target)
		}
		return out
	}

	response := resp.Content
	for _, k := range keys {
		if v, ok := extractSection(response, k); ok && strings.TrimSpace(v) != "" {
			out[k] = strings.TrimSpace(v)
		}
		// Marker missing from the response: the field keeps its original
		// value rather than being dropped.
	}
	return out
}

// translateSensitive runs the generative translation path for text carrying
// speaker labels or dosages. Returns "" on failure so the caller can fall
// back to the bulk path.
func (l *Layer) translateSensitive(ctx context.Context, text, target string) string {
	text = truncate(text, maxSensitiveChars)

	prompt := fmt.Sprintf(
		"Translate the following medical text into %s. Keep the speaker labels "+
			"\"Doctor:\" and \"Patient:\" exactly as written. Keep all drug names and "+
			"dosages (such as Paracetamol 500mg) exactly as written. "+
			"Return only the translated text.\n\n%s",
		languageName(target), text)

	start := time.Now()
	resp, err := l.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if l.metrics != nil {
		l.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil || resp == nil {
		if l.metrics != nil {
			l.metrics.RecordModelError(ctx, "llm", "translate")
		}
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

// translateBulk runs the cached bulk translation path. Identical (text,
// target) pairs hit the bulk endpoint at most once; concurrent callers for
// the same key share one in-flight request.
func (l *Layer) translateBulk(ctx context.Context, text, target string) string {
	if l.bulk == nil {
		return text
	}

	key := target + "\x00" + text
	if cached, ok := l.cache.Get(key); ok {
		if l.metrics != nil {
			l.metrics.TranslationCacheHits.Add(ctx, 1)
		}
		return cached
	}
	if l.metrics != nil {
		l.metrics.TranslationCacheMisses.Add(ctx, 1)
	}

	input := truncate(text, maxBulkChars)

	result, err, _ := l.group.Do(key, func() (any, error) {
		var out string
		start := time.Now()
		berr := l.breaker.Execute(func() error {
			var terr error
			out, terr = l.bulk.Translate(ctx, input, target)
			return terr
		})
		if l.metrics != nil {
			l.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
		}
		if berr != nil {
			return nil, berr
		}
		l.cache.Put(key, out)
		return out, nil
	})
	if err != nil {
		observe.Logger(ctx).Debug("bulk translation failed, keeping original text", "error", err)
		return text
	}
	return result.(string)
}

// IsSensitive reports whether text carries speaker labels or dosage markers
// and must therefore avoid the bulk translator.
func IsSensitive(text string) bool {
	return sensitiveRe.MatchString(text)
}

// extractSection locates the "### name ###" marker in a batch response and
// returns the span up to the next marker or the end of text.
func extractSection(response, name string) (string, bool) {
	marker := "### " + name + " ###"
	start := strings.Index(response, marker)
	if start < 0 {
		return "", false
	}
	rest := response[start+len(marker):]
	if next := strings.Index(rest, "###"); next >= 0 {
		rest = rest[:next]
	}
	return rest, true
}

// languageName returns the prompt-friendly name for a language code.
func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
