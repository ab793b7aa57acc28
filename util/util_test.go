package util

import (
	"strings"
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Fatal("Expected embedded version")
	}
	if strings.ContainsAny(version, " \n") {
		t.Errorf("Version should be trimmed, got '%s'", version)
	}
}

func TestGetNameAndVersion(t *testing.T) {
	result := GetNameAndVersion()
	expected := "fedsync / " + GetVersion()

	if result != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result)
	}
	if UserAgent() != "fedsync/"+GetVersion() {
		t.Errorf("Unexpected user agent '%s'", UserAgent())
	}
}

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "newlines replaced",
			input:    "line1\nline2\nline3",
			expected: "line1 line2 line3",
		},
		{
			name:     "html escaped",
			input:    "<script>alert('xss')</script>",
			expected: "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "ampersand",
			input:    "Tom & Jerry",
			expected: "Tom &amp; Jerry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeInput(tt.input)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello @bob",
			expected: "hello @bob",
		},
		{
			name:     "mention link",
			input:    `<p>hi <span class="h-card"><a href="https://b.example/@bob">@<span>bob</span></a></span></p>`,
			expected: "hi @bob",
		},
		{
			name:     "entities unescaped",
			input:    "Tom &amp; Jerry",
			expected: "Tom & Jerry",
		},
		{
			name:     "paragraphs keep a break",
			input:    "<p>one</p><p>two</p>",
			expected: "one\ntwo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripHTML(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestMarkdownLinksToHTML(t *testing.T) {
	result := MarkdownLinksToHTML("see [docs](https://example.com/a)")
	expected := `see <a href="https://example.com/a" target="_blank" rel="noopener noreferrer">docs</a>`
	if result != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Expected untouched string, got '%s'", got)
	}
	if got := Truncate("héllo wörld", 6); got != "héllo…" {
		t.Errorf("Expected 'héllo…', got '%s'", got)
	}
	if got := Truncate("hello", 1); got != "…" {
		t.Errorf("Expected ellipsis, got '%s'", got)
	}
}

func TestPrettyPrint(t *testing.T) {
	result := PrettyPrint(map[string]int{"inner": 42})
	if !strings.Contains(result, `"inner": 42`) {
		t.Errorf("Unexpected output '%s'", result)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2008, 8, 27, 13, 8, 45, 0, time.UTC)
	tests := []struct {
		name  string
		input string
	}{
		{"twitter", "Wed Aug 27 13:08:45 +0000 2008"},
		{"rfc1123z", "Wed, 27 Aug 2008 13:08:45 +0000"},
		{"iso zulu", "2008-08-27T13:08:45Z"},
		{"iso offset", "2008-08-27T15:08:45+02:00"},
		{"iso fraction", "2008-08-27T13:08:45.000Z"},
		{"unix seconds", "1219842525"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input)
			if !got.Equal(want) {
				t.Errorf("Expected %v, got %v", want, got)
			}
		})
	}

	if !ParseDate("not a date").IsZero() {
		t.Error("Expected zero time for garbage")
	}
}

func TestJSONHelpers(t *testing.T) {
	obj, err := ParseJSONObject([]byte(`{"id": 1234567890123456789, "id_str": "", "name": "bob", "n": "7"}`))
	if err != nil {
		t.Fatalf("ParseJSONObject failed: %v", err)
	}
	if got := FirstString(obj, "id_str", "id"); got != "1234567890123456789" {
		t.Errorf("Large ids must survive decoding, got '%s'", got)
	}
	if got := FirstInt(obj, "n"); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}
	if !Has(obj, "name") || Has(obj, "missing") {
		t.Error("Has reports wrong keys")
	}
}
