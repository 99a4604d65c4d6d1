package classify

import (
	"encoding/json"
	"strings"

	"github.com/placemate/mailsentry/internal/mail"
)

const missingReasonPlaceholder = "no reason provided"

// parseAIResponse turns a raw backend response into a validated
// classification. Parsing is two-stage: a strict decode of the trimmed
// response, then a fallback extraction of the first balanced JSON object
// substring. Returns false only when neither stage yields a JSON object.
func parseAIResponse(raw string) (mail.Classification, bool) {
	trimmed := strings.TrimSpace(raw)

	// Models frequently wrap the object in markdown fences.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil || fields == nil {
		extracted, ok := extractJSONObject(trimmed)
		if !ok {
			return mail.Classification{}, false
		}
		fields = nil
		if err := json.Unmarshal([]byte(extracted), &fields); err != nil || fields == nil {
			return mail.Classification{}, false
		}
	}

	return coerceFields(fields), true
}

// coerceFields applies field-level defaults so an invalid payload can never
// escape the classifier: non-boolean important becomes false, an unknown
// category becomes the catch-all, an out-of-range confidence becomes 0.5,
// and a missing reason gets a fixed placeholder.
func coerceFields(fields map[string]any) mail.Classification {
	result := mail.Classification{
		Important:  false,
		Category:   mail.CategoryOther,
		Confidence: 0.5,
		Reason:     missingReasonPlaceholder,
	}

	if v, ok := fields["important"].(bool); ok {
		result.Important = v
	}

	if v, ok := fields["category"].(string); ok {
		cat := mail.Category(strings.ToUpper(strings.TrimSpace(v)))
		if mail.ValidCategory(cat) {
			result.Category = cat
		}
	}

	if v, ok := fields["confidence"].(float64); ok && v >= 0 && v <= 1 {
		result.Confidence = v
	}

	if v, ok := fields["reason"].(string); ok && strings.TrimSpace(v) != "" {
		result.Reason = v
	}

	return result
}

// extractJSONObject returns the first balanced top-level JSON object in s,
// tracking string literals and escapes so braces inside values don't
// terminate the scan early.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
