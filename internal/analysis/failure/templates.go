package failure

// Template is the fixed user message shown for a category.
type Template struct {
	Title string
	Body  string
}

var templates = map[Category]Template{
	APIKeyInvalid: {
		Title: "API Key Invalid",
		Body:  "The provided API key is not valid. Please verify that the `API_KEY` environment variable is set correctly.",
	},
	QuotaExceeded: {
		Title: "API Quota Exceeded",
		Body:  "The API key has reached its free daily usage limit. Please wait 24 hours for the quota to reset.",
	},
	ContentModerated: {
		Title: "Content Moderation",
		Body:  "The AI's response was blocked due to safety settings. Please try rephrasing your message.",
	},
	NetworkError: {
		Title: "Network Error",
		Body:  "Could not connect to the backend service. Please check your network and try again.",
	},
	UnknownServiceFailure: {
		Title: "CRITICAL: AI Service Failure",
		Body:  "The request to the AI service failed for an unknown reason. Please check the console for details.",
	},
}

// TemplateFor returns the template for category, using the unknown-failure
// template for unrecognised values.
func TemplateFor(category Category) Template {
	if tmpl, ok := templates[category]; ok {
		return tmpl
	}
	return templates[UnknownServiceFailure]
}
