package pdf

import "strings"

// decodeContentText pulls the text-show operands out of a decoded page
// content stream. pdfcpu hands back the raw operator stream; the string
// literals of Tj/TJ/'/" operators carry the page text. Literals inside
// TJ arrays are joined without separators, per-operator output is
// separated by spaces, and text-line operators (Td, TD, T*) become
// newlines.
func decodeContentText(content []byte) string {
	var lines []string
	var line strings.Builder
	var pending []string // literals collected since the last operator

	flush := func() {
		s := strings.TrimSpace(line.String())
		line.Reset()
		if s != "" {
			lines = append(lines, s)
		}
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			lit, n := readStringLiteral(content[i:])
			pending = append(pending, lit)
			i += n
		case c == '<' && i+1 < len(content) && content[i+1] != '<':
			// Hex strings carry text too, but usually via composite
			// fonts whose CIDs we cannot map without the font's CMap.
			// Skip them rather than emit garbage.
			n := skipHexString(content[i:])
			i += n
		case isOperatorStart(c):
			op, n := readOperator(content[i:])
			switch op {
			case "Tj", "TJ", "'", "\"":
				for _, lit := range pending {
					line.WriteString(lit)
				}
				if len(pending) > 0 {
					line.WriteByte(' ')
				}
			case "Td", "TD", "T*", "ET":
				flush()
			}
			pending = pending[:0]
			i += n
		default:
			i++
		}
	}
	flush()

	return strings.Join(lines, "\n")
}

// readStringLiteral consumes a parenthesised PDF string starting at
// src[0] == '(' and returns the unescaped text plus bytes consumed.
func readStringLiteral(src []byte) (string, int) {
	var b strings.Builder
	depth := 0
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '\\':
			if i+1 < len(src) {
				b.WriteByte(unescape(src[i+1]))
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return c
	}
}

// skipHexString consumes a <...> hex string and returns bytes consumed.
func skipHexString(src []byte) int {
	for i := 1; i < len(src); i++ {
		if src[i] == '>' {
			return i + 1
		}
	}
	return len(src)
}

func isOperatorStart(c byte) bool {
	return c == '\'' || c == '"' ||
		(c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '*'
}

// readOperator consumes an operator token. The '*' continuation of T*
// is folded into the token.
func readOperator(src []byte) (string, int) {
	i := 0
	for i < len(src) {
		c := src[i]
		if c == '\'' || c == '"' {
			if i == 0 {
				return string(c), 1
			}
			break
		}
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '*' {
			i++
			continue
		}
		break
	}
	return string(src[:i]), max(i, 1)
}
