package ui

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/bz888/quill/internal/logger"
	"github.com/bz888/quill/internal/session"
	"github.com/bz888/quill/internal/transcript"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	alertPage = "alert"
	mainPage  = "main"
)

// UI is the two-pane chat window: the conversation above, the input below and an
// optional debug console on the right. It implements session.View.
type UI struct {
	app          *tview.Application
	pages        *tview.Pages
	mainFlex     *tview.Flex
	textView     *tview.TextView
	textArea     *tview.TextArea
	debugConsole *tview.TextView

	session    *session.Session
	model      string
	busy       bool
	debugShown bool
	log        *logger.Logger
}

func New(model string, dev bool) *UI {
	u := &UI{
		app:   tview.NewApplication(),
		model: model,
		log:   logger.NewLogger("views"),
	}
	u.app.EnablePaste(true)
	u.app.EnableMouse(true)

	u.debugConsole = u.initDebugConsole()
	u.textView = initChatViewer()
	u.textArea = initChatInput()
	u.setTitle()

	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.textView, 0, 1, false).
		AddItem(u.textArea, 8, 2, true)
	u.mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, true)
	if dev {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
		u.debugShown = true
	}
	u.pages = tview.NewPages().AddPage(mainPage, u.mainFlex, true, true)

	u.setInputCapture()
	return u
}

func initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	textView.SetBorder(true)
	textView.SetScrollable(true)
	return textView
}

func initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea()
	textArea.SetTitle("Message (/help for commands)").SetBorder(true)
	return textArea
}

func (u *UI) initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			u.app.Draw()
		}).
		SetDynamicColors(true).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

// DebugConsole is the writer the logger mirrors records into.
func (u *UI) DebugConsole() *tview.TextView {
	return u.debugConsole
}

// Attach connects the window to the session it displays. It must be called before Run.
func (u *UI) Attach(s *session.Session) {
	assert.Assert(context.TODO(), s != nil, "ui needs a session")
	u.session = s
}

// Post runs fn on the tview event loop and redraws afterwards.
func (u *UI) Post(fn func()) {
	u.app.QueueUpdateDraw(fn)
}

func (u *UI) Run() error {
	assert.Assert(context.TODO(), u.session != nil, "ui started without a session")
	return u.app.SetRoot(u.pages, true).SetFocus(u.textArea).Run()
}

func (u *UI) setInputCapture() {
	u.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			u.quit()
			return nil
		}
		return event
	})

	u.textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyTab:
			u.app.SetFocus(u.textArea)
		}
		return event
	})

	u.textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			if u.textView.GetText(false) != "" {
				u.app.SetFocus(u.textView)
			}
		case tcell.KeyEnter:
			u.handleInput(u.textArea.GetText())
			return nil
		}
		return event
	})
}

// handleInput runs a slash command or submits content as the next user turn.
func (u *UI) handleInput(content string) {
	name, arg, ok := parseCommand(content)
	if !ok {
		if err := u.session.Submit(content); err != nil {
			u.log.WithError(err).Debug("submit rejected")
		}
		return
	}

	u.textArea.SetText("", true)
	var err error
	switch name {
	case "/help":
		u.listHelp()
	case "/clear":
		err = u.session.Clear()
	case "/import":
		err = u.session.Import(arg)
	case "/export":
		_, err = u.session.ExportSnapshot(arg)
	case "/export-txt":
		_, err = u.session.ExportReadable(arg)
	case "/paths":
		target := u.session.Target()
		u.AppendNotice(fmt.Sprintf("Saving to %s and %s", target.Snapshot, target.Log))
	case "/debug":
		u.toggleDebugConsole()
	case "/bye", "/quit", "/exit":
		u.quit()
	default:
		u.AppendNotice("Unknown command " + name + ". Type /help for the list.")
	}
	if errors.Is(err, session.ErrRequestPending) {
		u.AppendNotice("Wait for the current reply first.")
	} else if err != nil {
		u.log.WithField("command", name).WithError(err).Debug("command failed")
	}
}

// parseCommand splits "/name arg" input. Anything not starting with "/" is a message.
func parseCommand(content string) (name, arg string, ok bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(trimmed, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func (u *UI) quit() {
	if !u.session.RequestClose() {
		return
	}
	u.log.Info("shutting down")
	u.app.Stop()
}

func (u *UI) Render(lines iter.Seq[transcript.Line]) {
	u.textView.Clear()
	for line := range lines {
		fmt.Fprintf(u.textView, "[%s::b]%s:[-::-] %s\n\n",
			prefixColour(line.Prefix), tview.Escape(line.Prefix), tview.Escape(line.Content))
	}
	u.textView.ScrollToEnd()
}

func prefixColour(prefix string) string {
	switch prefix {
	case transcript.DisplayName(transcript.RoleUser):
		return "red"
	case transcript.DisplayName(transcript.RoleAssistant):
		return "green"
	default:
		return "blue"
	}
}

func (u *UI) AppendNotice(text string) {
	fmt.Fprintf(u.textView, "[gray::i]%s[-::-]\n\n", tview.Escape(text))
	u.textView.ScrollToEnd()
}

func (u *UI) Alert(a session.Alert) {
	modal := tview.NewModal().
		SetText(a.Title + "\n\n" + a.Message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			u.pages.RemovePage(alertPage)
			u.app.SetFocus(u.textArea)
		})
	switch a.Level {
	case session.AlertError:
		modal.SetBackgroundColor(tcell.ColorDarkRed)
	case session.AlertWarning:
		modal.SetBackgroundColor(tcell.ColorOlive)
	}

	u.pages.RemovePage(alertPage)
	u.pages.AddPage(alertPage, modal, false, true)
	u.app.SetFocus(modal)
}

func (u *UI) SetBusy(busy bool) {
	u.busy = busy
	u.textArea.SetDisabled(busy)
	u.setTitle()
}

func (u *UI) ClearInput() {
	u.textArea.SetText("", true)
}

func (u *UI) setTitle() {
	title := fmt.Sprintf("Conversation (%s)", u.model)
	if u.busy {
		title += " waiting for reply..."
	}
	u.textView.SetTitle(title)
}

func (u *UI) toggleDebugConsole() {
	if u.debugShown {
		u.mainFlex.RemoveItem(u.debugConsole)
		u.AppendNotice("Debug console disabled")
	} else {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
		u.AppendNotice("Debug console enabled")
	}
	u.debugShown = !u.debugShown
}

func (u *UI) listHelp() {
	u.AppendNotice(strings.Join([]string{
		"Here are some commands you can use:",
		"- /help: Display this help message",
		"- /clear: Start over (saved files are kept)",
		"- /import <file.json>: Load a conversation and keep saving to it",
		"- /export <file.json>: Save a copy as JSON",
		"- /export-txt <file.txt>: Save a readable copy",
		"- /paths: Show where the conversation is being saved",
		"- /debug: Toggle the debug console",
		"- /bye: Exit the application (also /quit, /exit)",
	}, "\n"))
}
