package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// DefaultBudget is the raw-text character budget handed to the provider.
const DefaultBudget = 4000

const ellipsis = "..."

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	inlineSpace       = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines        = regexp.MustCompile(`\n{3,}`)
)

var (
	strictPolicy     *bluemonday.Policy
	strictPolicyOnce sync.Once
)

func policy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// Normalizer turns a document into stable plain text.
type Normalizer struct {
	md goldmark.Markdown
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Raw HTML is kept so the sanitizer sees and removes it.
			goldmark.WithRendererOptions(htmlrenderer.WithUnsafe()),
		),
	}
}

// StripMarkup removes markdown and HTML, decodes entities and collapses whitespace.
func (n *Normalizer) StripMarkup(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var buf bytes.Buffer
	rendered := text
	if err := n.md.Convert([]byte(text), &buf); err == nil {
		rendered = buf.String()
	}
	return StripTags(rendered)
}

// StripTags removes HTML tags only, without markdown rendering.
func StripTags(text string) string {
	plain := html.UnescapeString(policy().Sanitize(text))
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(plain, " "))
}

// SanitizeText strips HTML from hand-edited text but keeps its line structure,
// so bullet summaries survive an edit.
func SanitizeText(text string) string {
	plain := html.UnescapeString(policy().Sanitize(text))
	plain = strings.ReplaceAll(plain, "\r\n", "\n")
	lines := strings.Split(plain, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// Normalize returns "title\n\nbody" with markup removed. Same document state, same output.
func (n *Normalizer) Normalize(doc Document) string {
	return strings.TrimSpace(doc.Title) + "\n\n" + n.StripMarkup(doc.Body)
}

// Hash is the hex SHA-256 of Normalize(doc), used for change detection.
func (n *Normalizer) Hash(doc Document) string {
	return HashText(n.Normalize(doc))
}

// HashText is the hex SHA-256 of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Truncate bounds text to maxChars runes. It prefers cutting after the last
// sentence terminator when that lies in the final 20% of the budget, and
// otherwise cuts at the last whitespace and appends "...".
func Truncate(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}
	cut := runes[:maxChars]

	lastTerminator := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == '.' || cut[i] == '!' || cut[i] == '?' {
			lastTerminator = i
			break
		}
	}
	if lastTerminator >= 0 && float64(lastTerminator) >= 0.8*float64(maxChars) {
		return string(cut[:lastTerminator+1])
	}

	for i := len(cut) - 1; i >= 0; i-- {
		if unicode.IsSpace(cut[i]) {
			return strings.TrimRightFunc(string(cut[:i]), unicode.IsSpace) + ellipsis
		}
	}
	return string(cut) + ellipsis
}
