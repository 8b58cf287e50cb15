// Package submission holds the per-user record collected by the guided
// dialogue and the in-memory store that owns it.
package submission

import (
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/proxyrelay/relay/validate"
)

// Step is the dialogue position of an open submission. Users without a
// submission are idle.
type Step string

const (
	AwaitingType     Step = "awaiting_type"
	AwaitingName     Step = "awaiting_name"
	AwaitingOperator Step = "awaiting_operator"
	AwaitingPayload  Step = "awaiting_payload"
)

// Submission is one user's attempt to publish a link. Fields are set once,
// in dialogue order.
type Submission struct {
	ID          string
	UserID      int64
	Step        Step
	Kind        validate.Kind
	DisplayName string
	Operator    string
	Payload     string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// New opens a submission awaiting the type choice.
func New(userID int64, now time.Time) Submission {
	return Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		Step:      AwaitingType,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Ready reports whether every field is set and the payload matches the kind.
func (s Submission) Ready() bool {
	return s.Kind != validate.Invalid &&
		s.DisplayName != "" &&
		IsOperator(s.Operator) &&
		validate.Matches(s.Kind, s.Payload)
}

// Operator is a network carrier tag shown on published posts.
type Operator struct {
	Key   string
	Label string
}

var operators = []Operator{
	{Key: "irancell", Label: "ایرانسل"},
	{Key: "mci", Label: "همراه اول"},
	{Key: "rightel", Label: "رایتل"},
	{Key: "samantel", Label: "سامان تل"},
	{Key: "homenet", Label: "نت خانگی"},
}

// Operators returns the fixed operator table in display order.
func Operators() []Operator {
	out := make([]Operator, len(operators))
	copy(out, operators)
	return out
}

// IsOperator reports whether key is in the operator table.
func IsOperator(key string) bool {
	for _, op := range operators {
		if op.Key == key {
			return true
		}
	}
	return false
}

// OperatorLabel resolves key to its label; unknown keys are returned as is.
func OperatorLabel(key string) string {
	for _, op := range operators {
		if op.Key == key {
			return op.Label
		}
	}
	return key
}
