// Package cqlparser splits a CQL script into its logically executable
// statements (spec §4.4): line and block comments are stripped, and a ";"
// only terminates a statement when it appears outside a quoted literal.
package cqlparser

import (
	"strings"

	"github.com/hhandoko/cassandra-migration-go/errs"
)

// Parse splits script into non-empty, trimmed statements.
func Parse(script string) ([]string, error) {
	var statements []string
	var current strings.Builder

	runes := []rune(script)
	n := len(runes)

	for i := 0; i < n; i++ {
		c := runes[i]

		switch {
		case c == '-' && peek(runes, i+1) == '-':
			i = skipToEOL(runes, i)
		case c == '/' && peek(runes, i+1) == '/':
			i = skipToEOL(runes, i)
		case c == '/' && peek(runes, i+1) == '*':
			end, ok := findBlockCommentEnd(runes, i)
			if !ok {
				return nil, errs.ErrUnterminatedBlockComment
			}
			i = end
		case c == '\'' || c == '"':
			end, ok := findLiteralEnd(runes, i, c)
			if !ok {
				return nil, errs.ErrUnterminatedLiteral
			}
			current.WriteString(string(runes[i : end+1]))
			i = end
		case c == ';':
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements, nil
}

func peek(runes []rune, i int) rune {
	if i < len(runes) {
		return runes[i]
	}
	return 0
}

func skipToEOL(runes []rune, i int) int {
	for i < len(runes) && runes[i] != '\n' {
		i++
	}
	return i
}

func findBlockCommentEnd(runes []rune, start int) (int, bool) {
	for i := start + 2; i+1 < len(runes); i++ {
		if runes[i] == '*' && runes[i+1] == '/' {
			return i + 1, true
		}
	}
	return 0, false
}

// findLiteralEnd returns the index of the closing quote for the literal
// starting at start (runes[start] == quote), honoring "" / '' escaping.
func findLiteralEnd(runes []rune, start int, quote rune) (int, bool) {
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != quote {
			continue
		}
		// A doubled quote is an escaped quote inside the literal; skip
		// past the pair and keep scanning.
		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}
		return i, true
	}
	return 0, false
}
