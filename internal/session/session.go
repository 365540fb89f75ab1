package session

import (
	"context"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/bz888/quill/internal/logger"
	"github.com/bz888/quill/internal/persist"
	"github.com/bz888/quill/internal/transcript"
	"github.com/google/uuid"
)

const (
	TypingNotice  = "Assistant is typing..."
	ClearedNotice = "Conversation cleared."
)

type Options struct {
	Completer Completer
	View      View
	Post      Poster
	// Target is where the transcript is mirrored until an import retargets it.
	Target persist.Target
}

type pendingRequest struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// Session sequences one conversation: user turns go into the transcript, exactly one
// completion request runs at a time, and its result is applied on the owning goroutine.
// Every method must be called from that goroutine.
type Session struct {
	transcript *transcript.Transcript
	store      *persist.Adapter
	completer  Completer
	view       View
	post       Poster
	log        *logger.Logger

	state       State
	pending     *pendingRequest
	closeWarned bool
	closed      bool
}

func New(opts Options) *Session {
	ctx := context.TODO()
	assert.Assert(ctx, opts.Completer != nil, "session needs a completer")
	assert.Assert(ctx, opts.View != nil, "session needs a view")
	assert.Assert(ctx, opts.Post != nil, "session needs a poster")

	store := persist.NewAdapter(opts.Target)
	return &Session{
		transcript: transcript.New(store),
		store:      store,
		completer:  opts.Completer,
		view:       opts.View,
		post:       opts.Post,
		log:        logger.NewLogger("session"),
	}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Messages() []transcript.Message {
	return s.transcript.Messages()
}

func (s *Session) Target() persist.Target {
	return s.store.Target()
}

// Submit records text as a user turn and dispatches the transcript for completion.
// While a request is pending it does nothing and returns ErrRequestPending.
func (s *Session) Submit(text string) error {
	if s.closed {
		return ErrClosed
	}
	if s.state == AwaitingResponse {
		s.log.Debug("submit ignored, request pending")
		return ErrRequestPending
	}

	text = strings.TrimSpace(text)
	if text == "" {
		err := &ValidationError{Reason: "Write a message first."}
		s.view.Alert(Alert{Level: AlertWarning, Title: "Warning", Message: err.Reason})
		return err
	}
	if err := s.completer.Ready(); err != nil {
		verr := &ValidationError{Reason: "Configure an API key (QUILL_API_KEY) before sending.", Err: err}
		s.view.Alert(Alert{Level: AlertError, Title: "Error", Message: verr.Reason})
		return verr
	}

	_, werr := s.transcript.Append(transcript.RoleUser, text)
	s.view.Render(s.transcript.Render())
	s.reportWriteError(werr)
	s.view.ClearInput()
	s.view.AppendNotice(TypingNotice)
	s.view.SetBusy(true)

	s.dispatch()
	return nil
}

func (s *Session) dispatch() {
	ctx, cancel := context.WithCancel(context.Background())
	req := &pendingRequest{id: uuid.New(), cancel: cancel}
	payload := s.transcript.Messages()

	s.pending = req
	s.state = AwaitingResponse
	s.log.WithField("request", req.id).WithField("messages", len(payload)).Info("dispatching completion")

	completer, post := s.completer, s.post
	go func() {
		text, err := completer.Complete(ctx, payload)
		post(func() {
			s.resolve(req.id, text, err)
		})
	}()
}

// resolve applies the single result of request id. Results for anything other than the
// current pending request are dropped.
func (s *Session) resolve(id uuid.UUID, text string, err error) {
	if s.pending == nil || s.pending.id != id {
		s.log.WithField("request", id).Info("dropping result of abandoned request")
		return
	}
	s.pending.cancel()
	s.pending = nil
	s.state = Idle
	s.closeWarned = false

	if err != nil {
		s.log.WithField("request", id).WithError(err).Warn("completion failed")
		s.view.Render(s.transcript.Render())
		s.view.AppendNotice("Error: " + err.Error())
		s.view.SetBusy(false)
		s.view.Alert(Alert{Level: AlertError, Title: "API error", Message: err.Error()})
		return
	}

	_, werr := s.transcript.Append(transcript.RoleAssistant, text)
	s.view.Render(s.transcript.Render())
	s.reportWriteError(werr)
	s.view.SetBusy(false)
}

// Clear empties the conversation in memory. Files already written stay as they are.
func (s *Session) Clear() error {
	if s.closed {
		return ErrClosed
	}
	if s.state == AwaitingResponse {
		return ErrRequestPending
	}
	s.transcript.Clear()
	s.view.Render(s.transcript.Render())
	s.view.AppendNotice(ClearedNotice)
	return nil
}

// Import replaces the conversation with the snapshot at path and continues writing to
// it. On any failure the conversation and its target are left unchanged.
func (s *Session) Import(path string) error {
	if s.closed {
		return ErrClosed
	}
	if s.state == AwaitingResponse {
		return ErrRequestPending
	}
	if err := requirePath(path); err != nil {
		s.view.Alert(Alert{Level: AlertWarning, Title: "Import", Message: err.Error()})
		return err
	}

	msgs, target, err := persist.ImportSnapshot(path)
	if err == nil {
		err = s.transcript.Replace(msgs)
	}
	if err != nil {
		s.log.WithError(err).Warn("import failed")
		s.view.Alert(Alert{Level: AlertError, Title: "Import", Message: "Import failed: " + err.Error()})
		return err
	}

	s.store.Retarget(target)
	s.view.Render(s.transcript.Render())
	s.view.Alert(Alert{Level: AlertInfo, Title: "Import", Message: "Conversation imported."})
	return nil
}

// ExportSnapshot writes the conversation as JSON to path and returns the file written.
func (s *Session) ExportSnapshot(path string) (string, error) {
	return s.export(path, "JSON", persist.ExportSnapshot)
}

// ExportReadable writes the conversation as text to path and returns the file written.
func (s *Session) ExportReadable(path string) (string, error) {
	return s.export(path, "TXT", persist.ExportReadable)
}

func (s *Session) export(path, kind string, write func(string, []transcript.Message) (string, error)) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	if s.state == AwaitingResponse {
		return "", ErrRequestPending
	}
	title := "Export " + kind
	if err := requirePath(path); err != nil {
		s.view.Alert(Alert{Level: AlertWarning, Title: title, Message: err.Error()})
		return "", err
	}

	written, err := write(path, s.transcript.Messages())
	if err != nil {
		s.log.WithError(err).Warn("export failed")
		s.view.Alert(Alert{Level: AlertError, Title: title, Message: "Export failed: " + err.Error()})
		return "", err
	}
	s.view.Alert(Alert{Level: AlertInfo, Title: title, Message: "Conversation exported to " + written})
	return written, nil
}

// RequestClose reports whether the session may shut down. With a request in flight the
// first attempt is refused with a warning; a second attempt cancels the request and
// discards its result. Persistence only happens on the owning goroutine, so cancelling
// cannot interrupt a snapshot write.
func (s *Session) RequestClose() bool {
	if s.pending == nil {
		s.closed = true
		return true
	}
	if !s.closeWarned {
		s.closeWarned = true
		s.view.Alert(Alert{
			Level:   AlertWarning,
			Title:   "Warning",
			Message: "A request is in progress. Close again to force quit.",
		})
		return false
	}

	s.log.WithField("request", s.pending.id).Warn("forcing close with a request in flight")
	s.pending.cancel()
	s.pending = nil
	s.state = Idle
	s.closed = true
	return true
}

func (s *Session) reportWriteError(err error) {
	if err == nil {
		return
	}
	s.view.AppendNotice("Warning: could not save conversation: " + err.Error())
}

func requirePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return &ValidationError{Reason: "Choose a file name."}
	}
	return nil
}
