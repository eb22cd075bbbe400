package docstore

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrim(t *testing.T) {
	tests := []struct {
		name string
		in   Document
		want Document
	}{
		{
			name: "scalar and object fields pass through",
			in:   Document{"mood": json.RawMessage(`"sad"`), "user": json.RawMessage(`{"text":"` + strings.Repeat("a", 600) + `"}`)},
			want: Document{"mood": json.RawMessage(`"sad"`), "user": json.RawMessage(`{"text":"` + strings.Repeat("a", 600) + `"}`)},
		},
		{
			name: "non-object entries pass through",
			in:   Document{"tags": json.RawMessage(`["a", 1, null]`)},
			want: Document{"tags": json.RawMessage(`["a",1,null]`)},
		},
		{
			name: "short text untouched",
			in:   Document{"posts": json.RawMessage(`[{"text":"hello","id":1}]`)},
			want: Document{"posts": json.RawMessage(`[{"text":"hello","id":1}]`)},
		},
		{
			name: "long text cut by characters",
			in:   Document{"posts": json.RawMessage(`[{"text":"` + strings.Repeat("😄", 501) + `"}]`)},
			want: Document{"posts": json.RawMessage(`[{"text":"` + strings.Repeat("😄", 500) + `"}]`)},
		},
		{
			name: "non-string text untouched",
			in:   Document{"posts": json.RawMessage(`[{"text":42}]`)},
			want: Document{"posts": json.RawMessage(`[{"text":42}]`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Trim(tt.in)
			if err != nil {
				t.Fatalf("Trim() error = %v", err)
			}
			if diff := cmp.Diff(normalize(t, tt.want), normalize(t, got)); diff != "" {
				t.Errorf("Trim() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrimKeepsLatestReplies(t *testing.T) {
	replies := make([]int, 75)
	for i := range replies {
		replies[i] = i
	}
	raw, err := json.Marshal([]map[string]any{{"id": 1, "replies": replies}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := Trim(Document{"posts": raw})
	if err != nil {
		t.Fatal(err)
	}

	var posts []struct {
		Replies []int `json:"replies"`
	}
	if err := json.Unmarshal(got["posts"], &posts); err != nil {
		t.Fatal(err)
	}
	if len(posts[0].Replies) != MaxReplies {
		t.Fatalf("replies = %d, want %d", len(posts[0].Replies), MaxReplies)
	}
	if first := posts[0].Replies[0]; first != 25 {
		t.Errorf("first kept reply = %d, want 25", first)
	}
}

func TestTrimDoesNotModifyInput(t *testing.T) {
	in := Document{"posts": json.RawMessage(`[{"text":"` + strings.Repeat("b", 700) + `"}]`)}
	before := in.Clone()
	if _, err := Trim(in); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, in); diff != "" {
		t.Errorf("Trim() modified its input (-before +after):\n%s", diff)
	}
}

func TestTrimRejectsMalformedArray(t *testing.T) {
	if _, err := Trim(Document{"posts": json.RawMessage(`[1,`)}); err == nil {
		t.Error("Trim() of malformed array should fail")
	}
}

func TestCloneNil(t *testing.T) {
	var d Document
	c := d.Clone()
	if c == nil || len(c) != 0 {
		t.Errorf("Clone() of nil = %v, want empty document", c)
	}
}

// normalize decodes each field so key order and spacing don't matter.
func normalize(t *testing.T, d Document) map[string]any {
	t.Helper()
	out := make(map[string]any, len(d))
	for k, v := range d {
		var x any
		if err := json.Unmarshal(v, &x); err != nil {
			t.Fatalf("field %q: %v", k, err)
		}
		out[k] = x
	}
	return out
}
