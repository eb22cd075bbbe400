package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "feeling great today", want: "feeling great today"},
		{name: "whitespace trimming", input: "  \n hello world \t", want: "hello world"},
		{name: "bold markup", input: "so <b>tired</b> of this", want: "so btired/b of this"},
		{name: "comparison kept", input: "if a<b and c>d then", want: "if ab and cd then"},
		{name: "entities kept", input: "Tom &amp; Jerry", want: "Tom &amp; Jerry"},
		{name: "escaped markup", input: "&lt;i&gt;lol&lt;/i&gt;", want: "&lt;i&gt;lol&lt;/i&gt;"},
		{name: "script dropped", input: "<script>alert(1)</script>hi there", want: "hi there"},
		{name: "style dropped", input: "ok <STYLE>p { color: red }</STYLE>bye", want: "ok bye"},
		{name: "text around script kept raw", input: "1 < 2 &amp; <script>x()</script>3 > 2", want: "1  2 &amp; 3  2"},
		{name: "stray brackets", input: "I <3 you >:(", want: "I 3 you :("},
		{name: "emoji kept", input: "🔥 hyped 🔥", want: "🔥 hyped 🔥"},
		{name: "only brackets", input: "<><>", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{name: "short", input: "abc", n: 5, want: "abc"},
		{name: "exact", input: "abcde", n: 5, want: "abcde"},
		{name: "ascii", input: "abcdef", n: 3, want: "abc"},
		{name: "multibyte", input: "😄😢😡😎", n: 2, want: "😄😢"},
		{name: "zero", input: "abc", n: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}
