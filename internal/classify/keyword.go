package classify

import (
	"fmt"
	"strings"

	"github.com/placemate/mailsentry/internal/mail"
)

// Keyword tier weights. Every distinct matching keyword counts once.
const (
	highWeight   = 3
	mediumWeight = 2
	lowWeight    = 1

	senderTrustBonus = 3
	negativePenalty  = 2

	// A winning category below this score is not worth a notification.
	importantMinScore = 2

	noMatchReason = "no strong keyword match"
)

type keywordSet struct {
	high   []string
	medium []string
	low    []string
}

var categoryKeywords = map[mail.Category]keywordSet{
	mail.CategoryInterview: {
		high:   []string{"interview scheduled", "technical interview", "zoom interview", "interview invite", "onsite interview", "final interview", "interview confirmation"},
		medium: []string{"interview round", "hiring manager", "schedule a call", "interview process"},
		low:    []string{"recruiter", "screening", "shortlisted"},
	},
	mail.CategoryOffer: {
		high:   []string{"offer letter", "job offer", "offer of employment", "pleased to offer"},
		medium: []string{"compensation", "joining date", "salary structure", "ctc"},
		low:    []string{"offer"},
	},
	mail.CategoryAssessment: {
		high:   []string{"online assessment", "coding challenge", "coding test", "hackerrank", "codility", "take-home assignment"},
		medium: []string{"assessment", "aptitude test", "technical test"},
		low:    []string{"deadline to complete", "test link"},
	},
	mail.CategoryApplication: {
		high:   []string{"application received", "application status", "thank you for applying"},
		medium: []string{"your application", "application update", "under review"},
		low:    []string{"applied"},
	},
	mail.CategoryRejection: {
		high:   []string{"not moving forward", "regret to inform", "decided not to proceed"},
		medium: []string{"other candidates", "position has been filled", "unfortunately"},
		low:    []string{"future opportunities", "keep your resume"},
	},
}

// trustedSenderPatterns match HR/recruiting role-addresses and known
// job-board domains. Matched as lower-case substrings of the From address.
var trustedSenderPatterns = []string{
	"hr@",
	"careers@",
	"recruiting@",
	"recruitment@",
	"talent@",
	"recruiter",
	"hiring",
	"@naukri.com",
	"@linkedin.com",
	"@indeed.com",
	"@greenhouse.io",
	"@lever.co",
	"@myworkday.com",
	"@smartrecruiters.com",
	"@wellfound.com",
}

// negativeKeywords mark marketing/promotional mail. Each match subtracts
// from every category score.
var negativeKeywords = []string{
	"unsubscribe",
	"discount",
	"% off",
	"sale ends",
	"newsletter",
	"webinar",
	"coupon",
	"promo code",
	"limited time",
	"flash sale",
	"free trial",
	"special offer",
}

// ScoreKeywords runs the deterministic keyword tier over one message.
// It is a pure function: no I/O, no hidden state. The returned score is
// the winning category's final score (penalty and sender bonus applied).
func ScoreKeywords(msg mail.Message) (mail.Classification, int) {
	scanText := strings.ToLower(msg.Subject + " " + msg.Snippet + " " + msg.Body)
	sender := strings.ToLower(msg.From)

	penalty := 0
	for _, kw := range negativeKeywords {
		if strings.Contains(scanText, kw) {
			penalty += negativePenalty
		}
	}

	winner := mail.CategoryOther
	winnerScore := 0
	var winnerMatches []string

	// Categories iterates in fixed enumeration order; ties keep the
	// first-encountered category.
	for _, cat := range mail.Categories {
		set, ok := categoryKeywords[cat]
		if !ok {
			continue
		}

		score := 0
		var matches []string
		for _, kw := range set.high {
			if strings.Contains(scanText, kw) {
				score += highWeight
				matches = append(matches, kw)
			}
		}
		for _, kw := range set.medium {
			if strings.Contains(scanText, kw) {
				score += mediumWeight
				matches = append(matches, kw)
			}
		}
		for _, kw := range set.low {
			if strings.Contains(scanText, kw) {
				score += lowWeight
				matches = append(matches, kw)
			}
		}

		score -= penalty
		if score < 0 {
			score = 0
		}

		if score > winnerScore {
			winner = cat
			winnerScore = score
			winnerMatches = matches
		}
	}

	if winner == mail.CategoryOther {
		return mail.Classification{
			Important:  false,
			Category:   mail.CategoryOther,
			Confidence: 0,
			Reason:     noMatchReason,
			Method:     mail.MethodKeyword,
		}, 0
	}

	// Sender trust applies to the winning category only.
	for _, pattern := range trustedSenderPatterns {
		if strings.Contains(sender, pattern) {
			winnerScore += senderTrustBonus
			break
		}
	}

	confidence := float64(winnerScore) / 10
	if confidence > 1.0 {
		confidence = 1.0
	}

	if len(winnerMatches) > 3 {
		winnerMatches = winnerMatches[:3]
	}

	return mail.Classification{
		Important:  winnerScore >= importantMinScore,
		Category:   winner,
		Confidence: confidence,
		Reason:     fmt.Sprintf("matched: %s", strings.Join(winnerMatches, ", ")),
		Method:     mail.MethodKeyword,
	}, winnerScore
}
