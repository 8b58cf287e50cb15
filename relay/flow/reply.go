package flow

import (
	"fmt"

	"github.com/m3rciful/proxyrelay/relay/access"
	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"
)

// Screen names what the transport should show after an action.
type Screen string

const (
	// ScreenNone renders nothing. Non-admin admin commands end here.
	ScreenNone Screen = ""

	ScreenMenu           Screen = "menu"
	ScreenJoin           Screen = "join"
	ScreenNotJoined      Screen = "not_joined"
	ScreenStartHint      Screen = "start_hint"
	ScreenDenied         Screen = "denied"
	ScreenAskType        Screen = "ask_type"
	ScreenAskName        Screen = "ask_name"
	ScreenAskOperator    Screen = "ask_operator"
	ScreenAskPayload     Screen = "ask_payload"
	ScreenPublished      Screen = "published"
	ScreenDeliveryFailed Screen = "delivery_failed"
	ScreenCancelled      Screen = "cancelled"
	ScreenStatus         Screen = "status"
	ScreenAdminDone      Screen = "admin_done"
	ScreenAdminUsage     Screen = "admin_usage"
	ScreenAdminFailed    Screen = "admin_failed"
)

// Reply is the outcome of one inbound action.
type Reply struct {
	Screen Screen
	// Kind is the submission kind for payload prompts and publish notices.
	Kind validate.Kind
	// Err carries the validation, access or delivery error behind the screen.
	Err error
	// Action and Target describe admin command results.
	Action string
	Target int64
	Status *Status
}

// Silent reports whether the transport should render nothing.
func (r Reply) Silent() bool { return r.Screen == ScreenNone }

// Status is the admin status report.
type Status struct {
	access.Snapshot
	OpenSubmissions int
}

// ValidationError rejects free text for the current step.
type ValidationError struct {
	Step   submission.Step
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s: %s", e.Step, e.Reason)
}

// Code is read by the router's handler summary.
func (e *ValidationError) Code() string { return "VALIDATION" }
