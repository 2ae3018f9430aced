package pdf

import (
	"fmt"
	"io"
	"strconv"
)

// TokenType represents the type of a lexical token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNull
	TokenBoolean
	TokenInteger
	TokenReal
	TokenString
	TokenHexString
	TokenName
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenStreamStart
	TokenStreamEnd
	TokenObjStart
	TokenObjEnd
	TokenRef
	TokenXRef
	TokenTrailer
	TokenStartXRef
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value interface{}
	Pos   int64
}

// Lexer performs lexical analysis over an in-memory PDF fragment. PDF files
// are read whole and addressed by xref offsets, so the lexer works on a byte
// slice and an index rather than a buffered reader.
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a lexer over data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Position returns the current offset into the data
func (l *Lexer) Position() int64 {
	return int64(l.pos)
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.data)
}

func (l *Lexer) peek() (byte, bool) {
	if l.eof() {
		return 0, false
	}
	return l.data[l.pos], true
}

// skipWhitespace skips whitespace and comments
func (l *Lexer) skipWhitespace() {
	for !l.eof() {
		b := l.data[l.pos]
		if isWhitespace(b) {
			l.pos++
			continue
		}
		if b == '%' {
			for !l.eof() && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		return
	}
}

// isWhitespace checks if a byte is PDF whitespace
func isWhitespace(b byte) bool {
	return b == 0 || b == '\t' || b == '\n' || b == '\f' || b == '\r' || b == ' '
}

// isDelimiter checks if a byte is a PDF delimiter
func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

// NextToken returns the next token
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	pos := int64(l.pos)
	b, ok := l.peek()
	if !ok {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}
	l.pos++

	switch b {
	case '[':
		return Token{Type: TokenArrayStart, Pos: pos}, nil
	case ']':
		return Token{Type: TokenArrayEnd, Pos: pos}, nil
	case '(':
		return l.readLiteralString(pos)
	case '<':
		if next, ok := l.peek(); ok && next == '<' {
			l.pos++
			return Token{Type: TokenDictStart, Pos: pos}, nil
		}
		return l.readHexString(pos)
	case '>':
		if next, ok := l.peek(); ok && next == '>' {
			l.pos++
			return Token{Type: TokenDictEnd, Pos: pos}, nil
		}
		return Token{}, fmt.Errorf("unexpected '>' at position %d", pos)
	case '/':
		return l.readName(pos)
	default:
		if b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9') {
			l.pos--
			return l.readNumber(pos)
		}
		if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' {
			l.pos--
			return l.readKeyword(pos)
		}
		return Token{}, fmt.Errorf("unexpected character '%c' at position %d", b, pos)
	}
}

// readLiteralString reads a literal string (...)
func (l *Lexer) readLiteralString(pos int64) (Token, error) {
	var buf []byte
	depth := 1

	for depth > 0 {
		if l.eof() {
			return Token{}, fmt.Errorf("unterminated string at position %d", pos)
		}
		b := l.data[l.pos]
		l.pos++

		switch b {
		case '(':
			depth++
			buf = append(buf, b)
		case ')':
			depth--
			if depth > 0 {
				buf = append(buf, b)
			}
		case '\\':
			escaped, err := l.readEscapeSequence()
			if err != nil {
				return Token{}, err
			}
			buf = append(buf, escaped...)
		default:
			buf = append(buf, b)
		}
	}

	return Token{Type: TokenString, Value: buf, Pos: pos}, nil
}

// readEscapeSequence reads an escape sequence inside a literal string
func (l *Lexer) readEscapeSequence() ([]byte, error) {
	if l.eof() {
		return nil, io.ErrUnexpectedEOF
	}
	b := l.data[l.pos]
	l.pos++

	switch b {
	case 'n':
		return []byte{'\n'}, nil
	case 'r':
		return []byte{'\r'}, nil
	case 't':
		return []byte{'\t'}, nil
	case 'b':
		return []byte{'\b'}, nil
	case 'f':
		return []byte{'\f'}, nil
	case '(', ')', '\\':
		return []byte{b}, nil
	case '\r':
		// line continuation
		if next, ok := l.peek(); ok && next == '\n' {
			l.pos++
		}
		return nil, nil
	case '\n':
		return nil, nil
	default:
		if b >= '0' && b <= '7' {
			octal := []byte{b}
			for i := 0; i < 2; i++ {
				next, ok := l.peek()
				if !ok || next < '0' || next > '7' {
					break
				}
				octal = append(octal, next)
				l.pos++
			}
			val, _ := strconv.ParseInt(string(octal), 8, 16)
			return []byte{byte(val)}, nil
		}
		// unknown escape, kept as-is
		return []byte{b}, nil
	}
}

// readHexString reads a hexadecimal string <...>
func (l *Lexer) readHexString(pos int64) (Token, error) {
	var hex []byte

	for {
		if l.eof() {
			return Token{}, fmt.Errorf("unterminated hex string at position %d", pos)
		}
		b := l.data[l.pos]
		l.pos++

		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		hex = append(hex, b)
	}

	if len(hex)%2 != 0 {
		hex = append(hex, '0')
	}

	decoded := make([]byte, len(hex)/2)
	for i := 0; i < len(hex); i += 2 {
		val, err := strconv.ParseUint(string(hex[i:i+2]), 16, 8)
		if err != nil {
			return Token{}, fmt.Errorf("invalid hex string at position %d", pos)
		}
		decoded[i/2] = byte(val)
	}

	return Token{Type: TokenHexString, Value: decoded, Pos: pos}, nil
}

// readName reads a name object /...
func (l *Lexer) readName(pos int64) (Token, error) {
	var buf []byte

	for !l.eof() && isRegular(l.data[l.pos]) {
		b := l.data[l.pos]
		l.pos++

		if b == '#' {
			if l.pos+2 > len(l.data) {
				return Token{}, fmt.Errorf("invalid name escape at position %d", pos)
			}
			val, err := strconv.ParseUint(string(l.data[l.pos:l.pos+2]), 16, 8)
			if err != nil {
				return Token{}, fmt.Errorf("invalid name escape at position %d", pos)
			}
			l.pos += 2
			buf = append(buf, byte(val))
		} else {
			buf = append(buf, b)
		}
	}

	return Token{Type: TokenName, Value: string(buf), Pos: pos}, nil
}

// readNumber reads a number (integer or real)
func (l *Lexer) readNumber(pos int64) (Token, error) {
	start := l.pos
	hasDecimal := false
	hasDigit := false

	for !l.eof() {
		b := l.data[l.pos]
		if b == '+' || b == '-' {
			if l.pos > start {
				break
			}
		} else if b == '.' {
			if hasDecimal {
				break
			}
			hasDecimal = true
		} else if b >= '0' && b <= '9' {
			hasDigit = true
		} else {
			break
		}
		l.pos++
	}

	if !hasDigit {
		return Token{}, fmt.Errorf("invalid number at position %d", pos)
	}

	str := string(l.data[start:l.pos])
	if hasDecimal {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return Token{}, fmt.Errorf("invalid real number at position %d", pos)
		}
		return Token{Type: TokenReal, Value: val, Pos: pos}, nil
	}

	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("invalid integer at position %d", pos)
	}
	return Token{Type: TokenInteger, Value: val, Pos: pos}, nil
}

// readKeyword reads a keyword (true, false, null, obj, endobj, etc.)
func (l *Lexer) readKeyword(pos int64) (Token, error) {
	start := l.pos
	for !l.eof() && isRegular(l.data[l.pos]) {
		l.pos++
	}

	switch keyword := string(l.data[start:l.pos]); keyword {
	case "true":
		return Token{Type: TokenBoolean, Value: true, Pos: pos}, nil
	case "false":
		return Token{Type: TokenBoolean, Value: false, Pos: pos}, nil
	case "null":
		return Token{Type: TokenNull, Pos: pos}, nil
	case "obj":
		return Token{Type: TokenObjStart, Pos: pos}, nil
	case "endobj":
		return Token{Type: TokenObjEnd, Pos: pos}, nil
	case "stream":
		return Token{Type: TokenStreamStart, Pos: pos}, nil
	case "endstream":
		return Token{Type: TokenStreamEnd, Pos: pos}, nil
	case "R":
		return Token{Type: TokenRef, Pos: pos}, nil
	case "xref":
		return Token{Type: TokenXRef, Pos: pos}, nil
	case "trailer":
		return Token{Type: TokenTrailer, Pos: pos}, nil
	case "startxref":
		return Token{Type: TokenStartXRef, Pos: pos}, nil
	default:
		return Token{}, fmt.Errorf("unknown keyword '%s' at position %d", keyword, pos)
	}
}

// ReadLine reads up to and including the next end-of-line marker, returning
// the line without it
func (l *Lexer) ReadLine() ([]byte, error) {
	start := l.pos
	for !l.eof() {
		b := l.data[l.pos]
		l.pos++
		if b == '\r' {
			line := l.data[start : l.pos-1]
			if next, ok := l.peek(); ok && next == '\n' {
				l.pos++
			}
			return line, nil
		}
		if b == '\n' {
			return l.data[start : l.pos-1], nil
		}
	}
	return l.data[start:l.pos], nil
}

// ReadBytes reads exactly n bytes
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	if l.pos+n > len(l.data) {
		rest := l.data[l.pos:]
		l.pos = len(l.data)
		return rest, io.ErrUnexpectedEOF
	}
	buf := l.data[l.pos : l.pos+n]
	l.pos += n
	return buf, nil
}
