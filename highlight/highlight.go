// Package highlight applies ANSI terminal syntax highlighting to decoded
// document values, adapted from the teacher's SQL/EXPLAIN highlighter:
// same chroma pipeline, the sql lexer swapped for json since this
// repo's payloads are JSON documents and sub-document fragments rather
// than SQL text.
package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("json")
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// Value returns s with ANSI terminal JSON syntax highlighting applied.
// Empty input, or a tokenising or formatting error, returns the original
// string unchanged. Input that is not valid JSON is still run through the
// JSON lexer and formatter.
func Value(s string) string {
	if s == "" {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}
