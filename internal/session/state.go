// Package session models the onboarding conversation as a closed state
// machine with an explicit transition table, so an invalid state is
// unrepresentable and an invalid transition is an error instead of a
// silently accepted string.
package session

import "fmt"

// State is one step of the onboarding conversation
type State int

const (
	StateStart State = iota
	StateAwaitingProviderChoice
	StateAwaitingGmailAuth
	StateAwaitingOutlookAuth
	StateSetupComplete
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateAwaitingProviderChoice:
		return "AWAITING_PROVIDER_CHOICE"
	case StateAwaitingGmailAuth:
		return "AWAITING_GMAIL_AUTH"
	case StateAwaitingOutlookAuth:
		return "AWAITING_OUTLOOK_AUTH"
	case StateSetupComplete:
		return "SETUP_COMPLETE"
	case StateIdle:
		return "IDLE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is an input that may advance the conversation
type Event int

const (
	EventBegin Event = iota
	EventChoseGmail
	EventChoseOutlook
	EventAuthCompleted
	EventAuthFailed
	EventAddAnother
	EventDone
)

func (e Event) String() string {
	switch e {
	case EventBegin:
		return "BEGIN"
	case EventChoseGmail:
		return "CHOSE_GMAIL"
	case EventChoseOutlook:
		return "CHOSE_OUTLOOK"
	case EventAuthCompleted:
		return "AUTH_COMPLETED"
	case EventAuthFailed:
		return "AUTH_FAILED"
	case EventAddAnother:
		return "ADD_ANOTHER"
	case EventDone:
		return "DONE"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{StateStart, EventBegin}: StateAwaitingProviderChoice,

	{StateAwaitingProviderChoice, EventChoseGmail}:   StateAwaitingGmailAuth,
	{StateAwaitingProviderChoice, EventChoseOutlook}: StateAwaitingOutlookAuth,
	{StateAwaitingProviderChoice, EventDone}:         StateIdle,

	{StateAwaitingGmailAuth, EventAuthCompleted}: StateSetupComplete,
	{StateAwaitingGmailAuth, EventAuthFailed}:    StateAwaitingProviderChoice,

	{StateAwaitingOutlookAuth, EventAuthCompleted}: StateSetupComplete,
	{StateAwaitingOutlookAuth, EventAuthFailed}:    StateAwaitingProviderChoice,

	{StateSetupComplete, EventAddAnother}: StateAwaitingProviderChoice,
	{StateSetupComplete, EventDone}:       StateIdle,

	{StateIdle, EventBegin}: StateAwaitingProviderChoice,
}

// Step applies one event and returns the next state. Events with no entry
// in the transition table are rejected and leave the state unchanged.
func Step(from State, event Event) (State, error) {
	next, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, fmt.Errorf("invalid transition: %s on %s", event, from)
	}
	return next, nil
}
