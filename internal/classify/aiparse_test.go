package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placemate/mailsentry/internal/mail"
)

func TestParseAIResponseEmbeddedObject(t *testing.T) {
	raw := `Sure, here is my analysis: {"important": true, "category": "OFFER", "confidence": 0.95, "reason": "offer letter attached"} Let me know if you need more.`

	cls, ok := parseAIResponse(raw)

	require.True(t, ok)
	assert.True(t, cls.Important)
	assert.Equal(t, mail.CategoryOffer, cls.Category)
	assert.InDelta(t, 0.95, cls.Confidence, 1e-9)
}

func TestParseAIResponseBracesInsideStrings(t *testing.T) {
	raw := `{"important": false, "category": "OTHER", "confidence": 0.4, "reason": "body contains {curly} text and a \" quote"}`

	cls, ok := parseAIResponse(raw)

	require.True(t, ok)
	assert.Contains(t, cls.Reason, "{curly}")
}

func TestParseAIResponseNoObject(t *testing.T) {
	for _, raw := range []string{"", "no json here", "[1, 2, 3]", "{unclosed"} {
		_, ok := parseAIResponse(raw)
		assert.False(t, ok, "raw=%q", raw)
	}
}

func TestParseAIResponseLowercaseCategoryNormalized(t *testing.T) {
	cls, ok := parseAIResponse(`{"important": true, "category": " interview ", "confidence": 0.6, "reason": "x"}`)

	require.True(t, ok)
	assert.Equal(t, mail.CategoryInterview, cls.Category)
}

func TestExtractJSONObjectNested(t *testing.T) {
	s := `prefix {"a": {"b": 1}, "c": "}"} suffix`

	obj, ok := extractJSONObject(s)

	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}, "c": "}"}`, obj)
}

func TestCoerceFieldsConfidenceOutOfRange(t *testing.T) {
	for _, v := range []float64{-0.1, 1.1, 99} {
		cls := coerceFields(map[string]any{"confidence": v})
		assert.InDelta(t, 0.5, cls.Confidence, 1e-9, "confidence=%v", v)
	}

	cls := coerceFields(map[string]any{"confidence": 0.0})
	assert.Equal(t, 0.0, cls.Confidence)
}
