package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Payload limits applied before a document is sent to a backend.
const (
	MaxEntries = 200 // entries kept per array-valued field
	MaxText    = 500 // characters kept in an entry's "text"
	MaxReplies = 50  // entries kept in an entry's "replies"
)

// Document is the shared JSON object. Each logical key is a sibling field,
// kept as raw JSON so fields this process doesn't understand survive a
// read-modify-write unchanged.
type Document map[string]json.RawMessage

// Clone returns a deep copy of d. A nil document clones to an empty one.
func (d Document) Clone() Document {
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = bytes.Clone(v)
	}
	return c
}

// Trim bounds the size of d. Array-valued fields keep their first
// MaxEntries entries (shared lists are stored newest first). Within each
// object entry, "text" is cut to MaxText characters and "replies" keeps its
// last MaxReplies entries. Non-array fields and non-object entries pass
// through untouched.
func Trim(d Document) (Document, error) {
	out := make(Document, len(d))
	for key, raw := range d {
		if !isArray(raw) {
			out[key] = bytes.Clone(raw)
			continue
		}

		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", key, err)
		}
		if len(entries) > MaxEntries {
			entries = entries[:MaxEntries]
		}
		for i, e := range entries {
			trimmed, err := trimEntry(e)
			if err != nil {
				return nil, fmt.Errorf("trim field %q entry %d: %w", key, i, err)
			}
			entries[i] = trimmed
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", key, err)
		}
		out[key] = b
	}
	return out, nil
}

func trimEntry(raw json.RawMessage) (json.RawMessage, error) {
	if !isObject(raw) {
		return raw, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	changed := false
	if t, ok := fields["text"]; ok {
		var text string
		if json.Unmarshal(t, &text) == nil && utf8.RuneCountInString(text) > MaxText {
			b, err := json.Marshal(truncate(text, MaxText))
			if err != nil {
				return nil, err
			}
			fields["text"] = b
			changed = true
		}
	}
	if r, ok := fields["replies"]; ok && isArray(r) {
		var replies []json.RawMessage
		if err := json.Unmarshal(r, &replies); err != nil {
			return nil, err
		}
		if len(replies) > MaxReplies {
			b, err := json.Marshal(replies[len(replies)-MaxReplies:])
			if err != nil {
				return nil, err
			}
			fields["replies"] = b
			changed = true
		}
	}

	if !changed {
		return raw, nil
	}
	return json.Marshal(fields)
}

func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func isArray(raw json.RawMessage) bool {
	b := bytes.TrimLeft(raw, " \t\r\n")
	return len(b) > 0 && b[0] == '['
}

func isObject(raw json.RawMessage) bool {
	b := bytes.TrimLeft(raw, " \t\r\n")
	return len(b) > 0 && b[0] == '{'
}
