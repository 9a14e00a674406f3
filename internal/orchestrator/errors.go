package orchestrator

import "errors"

// APIError is a typed failure from the LLM provider boundary. Quota
// distinguishes exhausted credit/billing from transient service
// errors; callers pick retry-vs-terminate from it.
type APIError struct {
	Message string
	Quota   bool
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrSpendLimitExceeded is returned by History.SaveThinkerMessage when
// persisting a message would cross the conversation's spend limit.
// Like a quota error, it is conversation-fatal for the agent.
var ErrSpendLimitExceeded = errors.New("conversation spend limit exceeded")
