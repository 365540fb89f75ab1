package session

import (
	"context"
	"errors"
	"iter"

	"github.com/bz888/quill/internal/transcript"
)

type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting response"
	default:
		return "unknown"
	}
}

type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertError
)

// Alert is a notice the user has to acknowledge.
type Alert struct {
	Level   AlertLevel
	Title   string
	Message string
}

// View is the surface a Session drives. All calls happen on the session's sequencing
// goroutine.
type View interface {
	// Render redraws the conversation from scratch.
	Render(lines iter.Seq[transcript.Line])
	// AppendNotice adds a line below the conversation without touching the transcript.
	AppendNotice(text string)
	Alert(a Alert)
	// SetBusy disables or re-enables every action that mutates the session.
	SetBusy(busy bool)
	ClearInput()
}

type Completer interface {
	Ready() error
	Complete(ctx context.Context, msgs []transcript.Message) (string, error)
}

// Poster runs fn on the goroutine that owns the session, e.g. tview's QueueUpdateDraw.
type Poster func(fn func())

var (
	ErrRequestPending = errors.New("a request is already in progress")
	ErrClosed         = errors.New("session is closed")
)

// ValidationError blocks a submission before anything is recorded.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
