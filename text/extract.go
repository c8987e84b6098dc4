package text

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Block is a fenced code block found in generated text
type Block struct {
	Language string
	Code     string
}

var (
	// first fenced block; the newline before the closing fence is not content
	fencePattern = regexp.MustCompile("(?s)```([\\w+#.-]*)[ \\t]*\\r?\\n(.*?)\\r?\\n?```")

	styleTagPattern  = regexp.MustCompile(`(?i)</?style[^>]*>`)
	scriptTagPattern = regexp.MustCompile(`(?i)</?script[^>]*>`)
	doctypePattern   = regexp.MustCompile(`(?i)<!doctype\s+html`)
)

const htmlSkeleton = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Generated Page</title>
</head>
<body>
%CODE%
</body>
</html>`

// ExtractBlock returns the first fenced code block in generated.
func ExtractBlock(generated string) (Block, bool) {
	m := fencePattern.FindStringSubmatch(generated)
	if m == nil {
		return Block{}, false
	}
	return Block{Language: NormalizeLanguage(m[1]), Code: m[2]}, true
}

// ExtractCode returns the body of the first fenced block, or the whole text
// when there is none.
func ExtractCode(generated string) string {
	if block, ok := ExtractBlock(generated); ok {
		return block.Code
	}
	return generated
}

// FormatForLanguage applies the per-language cleanup rules to a candidate.
func FormatForLanguage(code, language string) string {
	switch NormalizeLanguage(language) {
	case "css":
		return strings.TrimSpace(styleTagPattern.ReplaceAllString(code, ""))
	case "javascript":
		return strings.TrimSpace(scriptTagPattern.ReplaceAllString(code, ""))
	case "html":
		if doctypePattern.MatchString(code) {
			return code
		}
		return strings.Replace(htmlSkeleton, "%CODE%", code, 1)
	default:
		return code
	}
}

// EmbedInHTML inserts a css or javascript snippet into an existing HTML
// document: css as a <style> block before </head>, javascript as a <script>
// block before </body>. Returns false when the anchor tag is missing.
func EmbedInHTML(document, code, language string) (string, bool) {
	var openTag, closeTag, anchor string
	switch NormalizeLanguage(language) {
	case "css":
		openTag, closeTag, anchor = "<style>", "</style>", "</head>"
		code = styleTagPattern.ReplaceAllString(code, "")
	case "javascript":
		openTag, closeTag, anchor = "<script>", "</script>", "</body>"
		code = scriptTagPattern.ReplaceAllString(code, "")
	default:
		return document, false
	}

	matches := regexp.MustCompile("(?i)"+regexp.QuoteMeta(anchor)).FindAllStringIndex(document, -1)
	if len(matches) == 0 {
		return document, false
	}
	idx := matches[len(matches)-1][0]

	var sb strings.Builder
	sb.WriteString(document[:idx])
	sb.WriteString("    " + openTag + "\n")
	for _, line := range SplitLines(strings.TrimSpace(code)) {
		sb.WriteString("        " + line + "\n")
	}
	sb.WriteString("    " + closeTag + "\n")
	sb.WriteString(document[idx:])
	return sb.String(), true
}

// CountNonSpace returns the number of non-whitespace runes in s
func CountNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

var languageAliases = map[string]string{
	"htm":             "html",
	"js":              "javascript",
	"mjs":             "javascript",
	"jsx":             "javascript",
	"javascriptreact": "javascript",
	"sass":            "scss",
	"md":              "markdown",
	"javascript":      "javascript",
	"html":            "html",
	"css":             "css",
	"scss":            "scss",
	"json":            "json",
	"markdown":        "markdown",
}

// NormalizeLanguage maps fence tags and filetypes to canonical language names.
// Unknown names are returned lower-cased.
func NormalizeLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if canon, ok := languageAliases[l]; ok {
		return canon
	}
	return l
}

// ExtensionLanguage maps a file extension to a language and reports
// whether the extension is known.
func ExtensionLanguage(path string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", false
	}
	canon, ok := languageAliases[ext]
	return canon, ok
}

// LanguageFromPath maps a file extension to a language. Files without a
// known extension are treated as html.
func LanguageFromPath(path string) string {
	if canon, ok := ExtensionLanguage(path); ok {
		return canon
	}
	return "html"
}

// AppendCode returns buffer with code appended after a blank line
func AppendCode(buffer, code string) string {
	return buffer + "\n\n" + code
}
