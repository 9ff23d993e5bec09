package jack

import (
	"fmt"
	"strings"
	"unicode"

	"hmy.dev/n2t-toolchain/pkg/diag"
)

// TokenType classifies a single lexeme produced by the Tokenizer.
type TokenType string

const (
	KeywordTok     TokenType = "keyword"
	SymbolTok      TokenType = "symbol"
	IntConstTok    TokenType = "integerConstant"
	StringConstTok TokenType = "stringConstant"
	IdentifierTok  TokenType = "identifier"
)

// Token is one lexeme together with the class it was recognized as.
type Token struct {
	Type  TokenType
	Value string
}

// keywords is deliberately missing 'bool': it reads as an ordinary identifier
// at the lexical level and is only special-cased by the Parser's type
// production, which treats it as a synonym for 'boolean'.
var keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true, "int": true, "char": true,
	"boolean": true, "void": true, "true": true, "false": true, "null": true,
	"this": true, "let": true, "do": true, "if": true, "else": true,
	"while": true, "return": true,
}

var symbols = map[byte]bool{
	'{': true, '}': true, '(': true, ')': true, '[': true, ']': true,
	'.': true, ',': true, ';': true, '+': true, '-': true, '*': true,
	'/': true, '&': true, '|': true, '<': true, '>': true, '=': true, '~': true,
}

// Tokenizer turns raw Jack source into a flat token stream, stripping
// comments along the way.
type Tokenizer struct {
	source string
}

func NewTokenizer(source string) *Tokenizer { return &Tokenizer{source: source} }

// Tokenize runs the two comment-stripping passes described in the toolchain's
// lexical rules (block comments first, then line comments) and then scans the
// remaining text into tokens, checking the top-level 'class ... }' shape.
func (t *Tokenizer) Tokenize() ([]Token, error) {
	withoutBlocks, err := stripBlockComments(t.source)
	if err != nil {
		return nil, err
	}
	withoutLines := stripLineComments(withoutBlocks)

	tokens, err := scanLines(withoutLines)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 || tokens[0].Value != "class" || tokens[len(tokens)-1].Value != "}" {
		return nil, diag.New(diag.Syntax, "a Jack compilation unit must start with 'class' and end with '}'")
	}

	return tokens, nil
}

// stripBlockComments removes every '/* ... */' span, respecting string
// literals so a quoted '/*' is never mistaken for the start of a comment.
// Greedy and non-nesting: the first '*/' found closes the comment.
func stripBlockComments(src string) (string, error) {
	var out strings.Builder
	inString := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if inString {
			out.WriteByte(c)
			if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}

		if c == '/' && i+1 < len(src) && src[i+1] == '*' {
			end := strings.Index(src[i+2:], "*/")
			if end == -1 {
				return "", diag.New(diag.Lexical, "unterminated block comment")
			}
			i = i + 2 + end + 1 // skip past the closing '*/'
			continue
		}

		out.WriteByte(c)
	}

	return out.String(), nil
}

// stripLineComments removes everything from a '//' marker to the end of its
// line, respecting string literals on a per-line basis (no escape sequences,
// so a string never spans a line).
func stripLineComments(src string) string {
	lines := strings.Split(src, "\n")

	for idx, line := range lines {
		inString := false
		for i := 0; i < len(line); i++ {
			c := line[i]
			if inString {
				if c == '"' {
					inString = false
				}
				continue
			}
			if c == '"' {
				inString = true
				continue
			}
			if c == '/' && i+1 < len(line) && line[i+1] == '/' {
				lines[idx] = line[:i]
				break
			}
		}
	}

	return strings.Join(lines, "\n")
}

func scanLines(src string) ([]Token, error) {
	var tokens []Token

	for lineNo, line := range strings.Split(src, "\n") {
		lineTokens, err := scanLine(line)
		if err != nil {
			return nil, diag.Wrap(diag.KindOrDefault(err, diag.Lexical), err, fmt.Sprintf("line %d", lineNo+1))
		}
		tokens = append(tokens, lineTokens...)
	}

	return tokens, nil
}

// scanLine flushes an identifier/number accumulator on whitespace or a
// symbol, and handles double-quoted strings (terminated by the next '"' on
// the same line) as a special case.
func scanLine(line string) ([]Token, error) {
	var tokens []Token
	var acc strings.Builder

	flush := func() error {
		if acc.Len() == 0 {
			return nil
		}
		text := acc.String()
		acc.Reset()

		if keywords[text] {
			tokens = append(tokens, Token{Type: KeywordTok, Value: text})
			return nil
		}

		if unicode.IsDigit(rune(text[0])) {
			for _, r := range text {
				if !unicode.IsDigit(r) {
					return diag.New(diag.Lexical, fmt.Sprintf("malformed token '%s': identifiers must not begin with a digit", text))
				}
			}
			tokens = append(tokens, Token{Type: IntConstTok, Value: text})
			return nil
		}

		tokens = append(tokens, Token{Type: IdentifierTok, Value: text})
		return nil
	}

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case c == '"':
			if err := flush(); err != nil {
				return nil, err
			}
			end := strings.IndexByte(line[i+1:], '"')
			if end == -1 {
				return nil, diag.New(diag.Lexical, "unterminated string literal")
			}
			tokens = append(tokens, Token{Type: StringConstTok, Value: line[i+1 : i+1+end]})
			i += end + 1

		case c == ' ' || c == '\t' || c == '\r':
			if err := flush(); err != nil {
				return nil, err
			}

		case symbols[c]:
			if err := flush(); err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Type: SymbolTok, Value: string(c)})

		default:
			acc.WriteByte(c)
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return tokens, nil
}
