package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placemate/mailsentry/internal/mail"
)

func TestScoreKeywordsInterviewFromTrustedSender(t *testing.T) {
	msg := mail.Message{
		Provider:  mail.ProviderGmail,
		MessageID: "m1",
		Subject:   "Interview Schedule — Round 2",
		From:      "hr@acme-corp.com",
		Body:      "Please join the technical interview on Thursday. Your zoom interview link is below.",
	}

	cls, score := ScoreKeywords(msg)

	// Two high-tier matches plus the sender-trust bonus.
	assert.Equal(t, 9, score)
	assert.Equal(t, mail.CategoryInterview, cls.Category)
	assert.True(t, cls.Important)
	assert.InDelta(t, 0.9, cls.Confidence, 1e-9)
	assert.Equal(t, mail.MethodKeyword, cls.Method)
	assert.Contains(t, cls.Reason, "technical interview")
	assert.Contains(t, cls.Reason, "zoom interview")
}

func TestScoreKeywordsMarketingClampsToZero(t *testing.T) {
	msg := mail.Message{
		Subject: "50% off your next course!",
		From:    "deals@courses.example.com",
		Body:    "Use code DISCOUNT at checkout. Unsubscribe anytime.",
	}

	cls, score := ScoreKeywords(msg)

	assert.Equal(t, 0, score)
	assert.Equal(t, mail.CategoryOther, cls.Category)
	assert.False(t, cls.Important)
	assert.Equal(t, 0.0, cls.Confidence)
	assert.Equal(t, noMatchReason, cls.Reason)
}

func TestScoreKeywordsPenaltyFloorsEachCategory(t *testing.T) {
	// One low-tier match (1 point) against one negative keyword (2 points)
	// must clamp to zero, not go negative.
	msg := mail.Message{
		Subject: "Talk to a recruiter today",
		From:    "news@jobspam.example.com",
		Body:    "Subscribe to our newsletter for more.",
	}

	cls, score := ScoreKeywords(msg)

	assert.Equal(t, 0, score)
	assert.Equal(t, mail.CategoryOther, cls.Category)
}

func TestScoreKeywordsTieKeepsEnumerationOrder(t *testing.T) {
	// "recruiter" (interview, low) and "offer" (offer, low) both score 1;
	// the interview category comes first in the enumeration.
	msg := mail.Message{
		Subject: "the recruiter mentioned an offer",
		From:    "someone@example.com",
	}

	cls, score := ScoreKeywords(msg)

	assert.Equal(t, 1, score)
	assert.Equal(t, mail.CategoryInterview, cls.Category)
	assert.False(t, cls.Important, "score below minimum must not be important")
}

func TestScoreKeywordsSenderBonusOnlyWithCategoryMatch(t *testing.T) {
	// A trusted sender alone must not manufacture importance.
	msg := mail.Message{
		Subject: "Lunch on Friday?",
		From:    "hr@acme-corp.com",
	}

	cls, score := ScoreKeywords(msg)

	assert.Equal(t, 0, score)
	assert.Equal(t, mail.CategoryOther, cls.Category)
	assert.False(t, cls.Important)
}

func TestScoreKeywordsDeterministic(t *testing.T) {
	msg := mail.Message{
		Subject: "Your online assessment is ready",
		From:    "careers@bigco.com",
		Body:    "Complete the coding challenge within 7 days.",
	}

	first, firstScore := ScoreKeywords(msg)
	for i := 0; i < 10; i++ {
		cls, score := ScoreKeywords(msg)
		require.Equal(t, first, cls)
		require.Equal(t, firstScore, score)
	}
}

func TestScoreKeywordsReasonListsAtMostThree(t *testing.T) {
	msg := mail.Message{
		Subject: "interview scheduled: technical interview via zoom interview with the hiring manager",
		From:    "recruiter@agency.example.com",
		Body:    "our recruiter set up the screening",
	}

	cls, _ := ScoreKeywords(msg)

	require.Equal(t, mail.CategoryInterview, cls.Category)
	// "matched: " plus at most three comma-separated keywords.
	assert.LessOrEqual(t, countCommas(cls.Reason), 2)
}

func countCommas(s string) int {
	n := 0
	for _, r := range s {
		if r == ',' {
			n++
		}
	}
	return n
}
