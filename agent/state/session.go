package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/bancoagil/agent/agent/contract"
)

var (
	ErrInvalidRole        = errors.New("transcript message has invalid role")
	ErrInvalidNextHandler = errors.New("next handler must be a specialist")
	ErrAuthWithoutID      = errors.New("authenticated session without customer id")
)

// SessionState is the single mutable record threaded through one
// conversation. The transcript is append-only and never reordered;
// NextHandler is a one-shot routing directive set only by triage and
// consumed by exactly the following transition.
type SessionState struct {
	SessionID string `json:"session_id"`

	Transcript []contractx.Message `json:"transcript,omitempty"`

	Authenticated bool   `json:"authenticated"`
	CustomerID    string `json:"customer_id,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`

	LastHandler contractx.HandlerType `json:"last_handler,omitempty"`
	NextHandler contractx.HandlerType `json:"next_handler,omitempty"`

	FailedAttempts int `json:"failed_attempts"`

	// InterviewScratch holds answers gathered mid-interview; transient,
	// cleared on logout and when the interview completes.
	InterviewScratch map[string]any `json:"interview_scratch,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSessionState(sessionID string, now time.Time) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *SessionState) AppendUser(content string) {
	s.Transcript = append(s.Transcript, contractx.Message{Role: contractx.RoleUser, Content: content})
}

func (s *SessionState) AppendAssistant(content string) {
	s.Transcript = append(s.Transcript, contractx.Message{Role: contractx.RoleAssistant, Content: content})
}

func (s *SessionState) AppendToolResult(tool, content string) {
	s.Transcript = append(s.Transcript, contractx.Message{Role: contractx.RoleTool, Content: content, Tool: tool})
}

// LastMessage returns the newest transcript entry, or false when empty.
func (s *SessionState) LastMessage() (contractx.Message, bool) {
	if s == nil || len(s.Transcript) == 0 {
		return contractx.Message{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}

// PriorAssistantMessage returns the assistant message two entries back
// (the reply that preceded the current user message), or "" when the
// transcript is too short or that slot is not an assistant message.
func (s *SessionState) PriorAssistantMessage() string {
	if s == nil || len(s.Transcript) < 2 {
		return ""
	}
	msg := s.Transcript[len(s.Transcript)-2]
	if msg.Role != contractx.RoleAssistant {
		return ""
	}
	return msg.Content
}

// TakeNextHandler consumes the one-shot routing directive.
func (s *SessionState) TakeNextHandler() (contractx.HandlerType, bool) {
	if s == nil || s.NextHandler == "" {
		return "", false
	}
	next := s.NextHandler
	s.NextHandler = ""
	return next, true
}

// Clone returns a deep copy. The turn loop snapshots state through this
// so an aborted turn can roll back to what was loaded.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Transcript = append([]contractx.Message(nil), s.Transcript...)
	if s.InterviewScratch != nil {
		clone.InterviewScratch = make(map[string]any, len(s.InterviewScratch))
		for k, v := range s.InterviewScratch {
			clone.InterviewScratch[k] = v
		}
	}
	return &clone
}

func (s *SessionState) SetScratch(key string, val any) {
	if s.InterviewScratch == nil {
		s.InterviewScratch = make(map[string]any, 5)
	}
	s.InterviewScratch[key] = val
}

// Reset logs the customer out: authentication, handler affinity, failure
// counter, and interview scratch return to their zero values. The
// transcript is kept; it is never truncated.
func (s *SessionState) Reset(now time.Time) {
	s.Authenticated = false
	s.CustomerID = ""
	s.CustomerName = ""
	s.LastHandler = ""
	s.NextHandler = ""
	s.FailedAttempts = 0
	s.InterviewScratch = nil
	s.Touch(now)
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	for i, msg := range s.Transcript {
		switch msg.Role {
		case contractx.RoleUser, contractx.RoleAssistant, contractx.RoleTool:
		default:
			return fmt.Errorf("%w: index=%d role=%q", ErrInvalidRole, i, msg.Role)
		}
	}
	if s.NextHandler != "" && !s.NextHandler.Specialist() {
		return fmt.Errorf("%w: next=%q", ErrInvalidNextHandler, s.NextHandler)
	}
	if s.LastHandler != "" && !s.LastHandler.Valid() {
		return fmt.Errorf("invalid last handler %q", s.LastHandler)
	}
	if s.Authenticated && strings.TrimSpace(s.CustomerID) == "" {
		return ErrAuthWithoutID
	}
	if s.FailedAttempts < 0 {
		return fmt.Errorf("failed attempts must be >= 0, got %d", s.FailedAttempts)
	}
	return nil
}
