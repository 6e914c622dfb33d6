// Package events carries change notifications between budget views, the
// import pipeline and background workers.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindEnterpriseChanged   Kind = "enterprise.changed"
	KindBudgetUpdated       Kind = "budget.updated"
	KindDataRefreshed       Kind = "data.refreshed"
	KindNavigationRequested Kind = "navigation.requested"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindEnterpriseChanged, KindBudgetUpdated, KindDataRefreshed, KindNavigationRequested:
		return true
	default:
		return false
	}
}

// Message is a single notification. Source identifies the process that
// published it so a consumer can skip its own messages.
type Message struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Source     string            `json:"source"`
	FiscalYear int               `json:"fiscal_year,omitempty"`
	AccountID  int64             `json:"account_id,omitempty"`
	Target     string            `json:"target,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// New creates a message with a fresh id and the current time.
func New(kind Kind, source string) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

func NewDataRefreshed(source string, fiscalYear int) Message {
	m := New(KindDataRefreshed, source)
	m.FiscalYear = fiscalYear
	return m
}

func NewBudgetUpdated(source string, fiscalYear int, accountID int64) Message {
	m := New(KindBudgetUpdated, source)
	m.FiscalYear = fiscalYear
	m.AccountID = accountID
	return m
}

func NewEnterpriseChanged(source string) Message {
	return New(KindEnterpriseChanged, source)
}

// NewNavigationRequest asks listeners to show target, e.g. "enterprise".
func NewNavigationRequest(source, target string, params map[string]string) Message {
	m := New(KindNavigationRequested, source)
	m.Target = target
	m.Params = params
	return m
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON decodes a message and rejects unknown kinds.
func FromJSON(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if !m.Kind.IsValid() {
		return Message{}, fmt.Errorf("decode message: unknown kind %q", m.Kind)
	}
	return m, nil
}
