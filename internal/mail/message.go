package mail

import (
	"fmt"
	"time"
)

// Provider represents supported mail services
type Provider string

const (
	ProviderGmail   Provider = "GMAIL"
	ProviderOutlook Provider = "OUTLOOK"
)

// Message represents a normalized email message across providers
type Message struct {
	Provider   Provider
	MessageID  string // provider-native ID (Gmail: Id, Outlook: id)
	ThreadID   string // provider thread/conversation id, optional
	Subject    string
	From       string
	To         []string
	Snippet    string
	Body       string // bounded-length plain text
	ReceivedAt time.Time
	WebLink    string // deep link back to the provider UI
	IsSpam     bool   // set when fetched from a spam/junk folder
}

// UniqueID returns the global dedup key for a message.
// Two fetches of the same underlying message always produce the same value.
func (m Message) UniqueID() string {
	return fmt.Sprintf("%s:%s", m.Provider, m.MessageID)
}

// Category is one of the closed set of classification labels
type Category string

const (
	CategoryInterview   Category = "INTERVIEW"
	CategoryOffer       Category = "OFFER"
	CategoryAssessment  Category = "ASSESSMENT"
	CategoryApplication Category = "APPLICATION"
	CategoryRejection   Category = "REJECTION"
	CategoryOther       Category = "OTHER" // catch-all
)

// Categories lists all labels in their fixed enumeration order.
// Tie-breaking in the keyword scorer depends on this order.
var Categories = []Category{
	CategoryInterview,
	CategoryOffer,
	CategoryAssessment,
	CategoryApplication,
	CategoryRejection,
	CategoryOther,
}

// ValidCategory reports whether c is a member of the closed label set.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Classification method tags
const (
	MethodKeyword         = "keyword"
	MethodAI              = "ai"
	MethodKeywordFallback = "keyword_fallback"
)

// Classification is the result of classifying one message
type Classification struct {
	Important  bool     `json:"important"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Method     string   `json:"method"`
}
