package util

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed version.txt
var embeddedVersion string

var (
	stripPolicyOnce sync.Once
	stripPolicy     *bluemonday.Policy

	blockBreaks     = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/li)\s*>`)
	repeatedSpaces  = regexp.MustCompile(`[ \t]+`)
	repeatedNewline = regexp.MustCompile(`\n{3,}`)
)

func GetVersion() string {
	return strings.TrimSpace(embeddedVersion)
}

func GetNameAndVersion() string {
	return fmt.Sprintf("%s / %s", Name, GetVersion())
}

// UserAgent is sent with every outgoing request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Name, GetVersion())
}

func NormalizeInput(text string) string {
	normalized := strings.Replace(text, "\n", " ", -1)
	normalized = html.EscapeString(normalized)
	return normalized
}

func DateTimeFormat() string {
	return "2006-01-02 15:04:05 MST"
}

func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", " ")
	return string(s)
}

// StripHTML turns note HTML into plain text, keeping line breaks of block
// elements and unescaping entities.
func StripHTML(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}
	stripPolicyOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})
	text = blockBreaks.ReplaceAllString(text, "$0\n")
	plain := html.UnescapeString(stripPolicy.Sanitize(text))
	plain = repeatedSpaces.ReplaceAllString(plain, " ")
	plain = repeatedNewline.ReplaceAllString(plain, "\n\n")
	return strings.TrimSpace(plain)
}

// MarkdownLinksToHTML converts Markdown links [text](url) to HTML <a> tags
func MarkdownLinksToHTML(text string) string {
	re := regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	return re.ReplaceAllStringFunc(text, func(match string) string {
		matches := re.FindStringSubmatch(match)
		if len(matches) == 3 {
			linkText := html.EscapeString(matches[1])
			linkURL := html.EscapeString(matches[2])
			return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, linkURL, linkText)
		}
		return match
	})
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
