// Package mdx rewrites plain markdown so the MDX compiler renders it
// literally instead of parsing stray tags and braces as JSX.
package mdx

import (
	"regexp"
	"strings"
)

const fenceMarker = "```"

// componentTags are docs-framework components that are kept as JSX
var componentTags = []string{"Tabs", "Steps", "Callout", "Cards", "FileTree", "Bleed", "Code"}

// htmlTags are lowercase tags MDX understands; any other <tag> is quoted
var htmlTags = map[string]bool{
	"div": true, "span": true, "p": true, "a": true, "img": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "tr": true, "td": true, "th": true,
	"code": true, "pre": true, "br": true, "hr": true,
	"em": true, "strong": true, "b": true, "i": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "nav": true,
	"header": true, "footer": true, "main": true, "aside": true,
}

var (
	componentRe  = regexp.MustCompile(`</?(` + strings.Join(componentTags, "|") + `)`)
	jsxRe        = regexp.MustCompile(`<[A-Z]`)
	placeholder  = regexp.MustCompile(`(?i)<[a-z][a-z_]*>`)
	inlineCodeRe = regexp.MustCompile("`[^`]+`")
	bracesRe     = regexp.MustCompile(`\{([^}]*)\}`)
	expressionRe = regexp.MustCompile(`['"\[\]()]`)
)

// Escape rewrites a whole markdown document line by line. Fenced code,
// import/export statements and JSX component lines pass through untouched.
//
// Fences are toggled, not counted: an unbalanced fence leaves the rest of
// the document treated as code.
func Escape(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, len(lines))

	inFence := false
	for i, line := range lines {
		out[i], inFence = escapeLine(line, inFence)
	}

	return strings.Join(out, "\n")
}

// escapeLine transforms a single line given the fence state before it and
// returns the fence state after it.
func escapeLine(line string, inFence bool) (string, bool) {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, fenceMarker) {
		return line, !inFence
	}
	if inFence {
		return line, inFence
	}
	if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "export ") {
		return line, inFence
	}
	if componentRe.MatchString(line) || jsxRe.MatchString(line) {
		return line, inFence
	}

	line = quotePlaceholders(line)
	return escapeBraces(line), inFence
}

// quotePlaceholders wraps unknown tags such as <output_dir> in backticks
func quotePlaceholders(line string) string {
	return placeholder.ReplaceAllStringFunc(line, func(tag string) string {
		name := strings.ToLower(tag[1 : len(tag)-1])
		if htmlTags[name] {
			return tag
		}
		return "`" + tag + "`"
	})
}

// escapeBraces replaces {text} with HTML entities outside inline code.
// Braces holding quotes, brackets or parentheses are left alone as real
// JSX expressions.
func escapeBraces(line string) string {
	spans := inlineCodeRe.FindAllStringIndex(line, -1)

	var b strings.Builder
	b.Grow(len(line))

	prev := 0
	for _, span := range spans {
		b.WriteString(escapeBracesInText(line[prev:span[0]]))
		b.WriteString(line[span[0]:span[1]])
		prev = span[1]
	}
	b.WriteString(escapeBracesInText(line[prev:]))

	return b.String()
}

func escapeBracesInText(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return bracesRe.ReplaceAllStringFunc(text, func(match string) string {
		inner := match[1 : len(match)-1]
		if expressionRe.MatchString(inner) {
			return match
		}
		return "&#123;" + inner + "&#125;"
	})
}
