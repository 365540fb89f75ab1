package persist

import (
	"bytes"
	"encoding/json"

	"github.com/bz888/quill/internal/transcript"
)

// EncodeSnapshot renders msgs as an indented JSON array. HTML characters are left
// unescaped so the file stays readable.
func EncodeSnapshot(msgs []transcript.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []transcript.Message{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(msgs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses a snapshot. The document must be an array of objects, each with
// a non-empty string role and a string content.
func DecodeSnapshot(data []byte) ([]transcript.Message, error) {
	if !json.Valid(data) {
		return nil, &transcript.FormatError{Index: -1, Reason: "not valid JSON"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		return nil, &transcript.FormatError{Index: -1, Reason: "expected a JSON array of messages"}
	}

	msgs := make([]transcript.Message, 0, len(entries))
	for i, raw := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			return nil, &transcript.FormatError{Index: i, Reason: "expected an object with role and content"}
		}

		role, reason := stringField(fields, "role")
		if reason != "" {
			return nil, &transcript.FormatError{Index: i, Reason: reason}
		}
		if role == "" {
			return nil, &transcript.FormatError{Index: i, Reason: "empty role"}
		}

		content, reason := stringField(fields, "content")
		if reason != "" {
			return nil, &transcript.FormatError{Index: i, Reason: reason}
		}

		msgs = append(msgs, transcript.Message{Role: transcript.Role(role), Content: content})
	}
	return msgs, nil
}

// stringField returns the named string field, or a non-empty reason why it is unusable.
func stringField(fields map[string]json.RawMessage, name string) (string, string) {
	raw, ok := fields[name]
	if !ok {
		return "", "missing " + name
	}
	var s string
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) || json.Unmarshal(raw, &s) != nil {
		return "", name + " must be a string"
	}
	return s, ""
}

// FormatEntry is the readable-log rendering of one message.
func FormatEntry(m transcript.Message) string {
	return transcript.DisplayName(m.Role) + ": " + m.Content + "\n\n"
}
