package transcript

import "fmt"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role/content turn. Roles outside the known set are kept as-is
// so transcripts written by other tools still load and render.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Line is the display projection of a Message.
type Line struct {
	Prefix  string
	Content string
}

func (l Line) String() string {
	return l.Prefix + ": " + l.Content
}

// DisplayName maps a role to the name shown in the chat view and the readable log.
func DisplayName(role Role) string {
	switch role {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(role)
	}
}

// FormatError reports a transcript that does not have the role/content shape.
// Index is the offending entry, or -1 when the document as a whole is wrong.
type FormatError struct {
	Index  int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Index < 0 {
		return "invalid transcript: " + e.Reason
	}
	return fmt.Sprintf("invalid transcript entry %d: %s", e.Index, e.Reason)
}
