package client

import "log/slog"

type State int

const (
	StateIdle State = iota
	StateApplyingRemote
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplyingRemote:
		return "applying-remote"
	default:
		return "unknown"
	}
}

// Editor is the local editing surface. SetValue must deliver its change
// notifications before it returns.
type Editor interface {
	Value() string
	SetValue(content string)
}

// Relay publishes a locally authored document to the room.
type Relay func(content string) error

// Reconciler tells locally authored edits apart from remote content written
// into the editor, so that applied remote content is never relayed back out.
// It is not safe for concurrent use; the session loop owns it.
type Reconciler struct {
	editor Editor
	relay  Relay
	state  State

	// consumed counts notifications swallowed during the current write.
	consumed int
}

func NewReconciler(editor Editor, relay Relay) *Reconciler {
	return &Reconciler{editor: editor, relay: relay}
}

func (r *Reconciler) State() State {
	return r.state
}

// ApplyRemote writes remote content into the editor. It reports whether a
// write happened; nil content and content equal to the buffer are ignored.
// The state is back to Idle when ApplyRemote returns, however many change
// notifications the write produced.
func (r *Reconciler) ApplyRemote(content *string) bool {
	if content == nil {
		return false
	}
	if r.editor.Value() == *content {
		return false
	}

	r.state = StateApplyingRemote
	r.consumed = 0
	defer func() {
		r.state = StateIdle
	}()

	r.editor.SetValue(*content)

	if r.consumed != 1 {
		slog.Debug("remote write produced unexpected notification count", "notifications", r.consumed)
	}
	return true
}

// OnLocalChange is the editor's change listener.
func (r *Reconciler) OnLocalChange(content string) error {
	if r.state == StateApplyingRemote {
		r.consumed++
		return nil
	}
	if r.relay == nil {
		return nil
	}
	return r.relay(content)
}
