package failure

import (
	"fmt"
	"strings"
)

// Category is a user-facing failure class.
type Category string

const (
	APIKeyInvalid         Category = "api_key_invalid"
	QuotaExceeded         Category = "quota_exceeded"
	ContentModerated      Category = "content_moderated"
	NetworkError          Category = "network_error"
	UnknownServiceFailure Category = "unknown_service_failure"
)

// DefaultBackendName is the log/auth backend keyword matched as a network failure.
const DefaultBackendName = "supabase"

type rule struct {
	category Category
	keywords []string
}

// Rules are evaluated in order and the first match wins. Quota is checked
// before network so "quota exceeded after network fetch" stays a quota error.
var baseRules = []rule{
	{category: APIKeyInvalid, keywords: []string{"api key not valid", "invalid api key"}},
	{category: QuotaExceeded, keywords: []string{"quota"}},
	{category: ContentModerated, keywords: []string{"safety", "blocked"}},
	{category: NetworkError, keywords: []string{"fetch", "network"}},
}

// Classifier maps raw upstream error text to a Category.
type Classifier struct {
	rules []rule
}

// New builds a classifier that also treats the named backends as network
// failures. With no names it falls back to DefaultBackendName.
func New(backendNames ...string) Classifier {
	var names []string
	for _, name := range backendNames {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		names = []string{DefaultBackendName}
	}

	rules := make([]rule, len(baseRules))
	copy(rules, baseRules)
	last := len(rules) - 1
	rules[last] = rule{
		category: NetworkError,
		keywords: append(append([]string(nil), rules[last].keywords...), names...),
	}
	return Classifier{rules: rules}
}

var defaultClassifier = New()

// Classify uses the default classifier.
func Classify(raw string) Category {
	return defaultClassifier.Classify(raw)
}

// Classify lower-cases raw and returns the first matching category.
func (c Classifier) Classify(raw string) Category {
	normalized := strings.ToLower(raw)
	for _, r := range c.rules {
		for _, keyword := range r.keywords {
			if strings.Contains(normalized, keyword) {
				return r.category
			}
		}
	}
	return UnknownServiceFailure
}

// Report is a classified failure ready to show to a user.
type Report struct {
	Category Category `json:"category"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Raw      string   `json:"raw"`
}

// Analyze classifies err and renders the user-facing text.
func (c Classifier) Analyze(err error) Report {
	raw := "unknown error"
	if err != nil {
		raw = err.Error()
	}
	raw = strings.ToLower(raw)
	category := c.Classify(raw)
	return Report{
		Category: category,
		Title:    TemplateFor(category).Title,
		Text:     Render(category, raw),
		Raw:      raw,
	}
}

// LogText is the form stored in the conversation log for a failed reply.
func (r Report) LogText() string {
	return LogText(r.Category)
}

// Render formats the template for category with raw appended verbatim.
func Render(category Category, raw string) string {
	return fmt.Sprintf("%s\n\n**Error Details:** `%s`", headline(category), raw)
}

// LogText prefixes the category template with the handler error marker.
func LogText(category Category) string {
	return "[HANDLER_ERROR] " + headline(category)
}

func headline(category Category) string {
	tmpl := TemplateFor(category)
	return fmt.Sprintf("**[%s]**\n\n%s", tmpl.Title, tmpl.Body)
}
