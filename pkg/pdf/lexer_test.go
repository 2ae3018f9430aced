package pdf

import (
	"testing"
)

// TestLexerReadLine tests reading lines from lexer
func TestLexerReadLine(t *testing.T) {
	input := []byte("line1\nline2\rline3\r\nline4")
	lexer := NewLexer(input)

	expected := []string{"line1", "line2", "line3", "line4"}
	for _, want := range expected {
		line, err := lexer.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		if string(line) != want {
			t.Errorf("Expected '%s', got '%s'", want, line)
		}
	}
}

// TestIsWhitespace tests whitespace detection
func TestIsWhitespace(t *testing.T) {
	whitespaces := []byte{' ', '\t', '\n', '\r', '\f', 0}
	for _, ws := range whitespaces {
		if !isWhitespace(ws) {
			t.Errorf("Expected %d to be whitespace", ws)
		}
	}

	nonWhitespaces := []byte{'a', '1', '/', '('}
	for _, nws := range nonWhitespaces {
		if isWhitespace(nws) {
			t.Errorf("Expected %c to not be whitespace", nws)
		}
	}
}

// TestIsDelimiter tests delimiter detection
func TestIsDelimiter(t *testing.T) {
	delimiters := []byte{'(', ')', '<', '>', '[', ']', '{', '}', '/', '%'}
	for _, d := range delimiters {
		if !isDelimiter(d) {
			t.Errorf("Expected %c to be delimiter", d)
		}
	}

	nonDelimiters := []byte{'a', '1', '.', '-'}
	for _, nd := range nonDelimiters {
		if isDelimiter(nd) {
			t.Errorf("Expected %c to not be delimiter", nd)
		}
	}
}

// TestLexerTokens tests the token stream for a mixed input
func TestLexerTokens(t *testing.T) {
	input := []byte("<< /Kids [3 0 R] >> stream endstream % comment\ntrue")
	lexer := NewLexer(input)

	expected := []TokenType{
		TokenDictStart, TokenName, TokenArrayStart, TokenInteger,
		TokenInteger, TokenRef, TokenArrayEnd, TokenDictEnd,
		TokenStreamStart, TokenStreamEnd, TokenBoolean, TokenEOF,
	}
	for i, want := range expected {
		tok, err := lexer.NextToken()
		if err != nil {
			t.Fatalf("NextToken %d failed: %v", i, err)
		}
		if tok.Type != want {
			t.Errorf("Token %d: expected type %d, got %d", i, want, tok.Type)
		}
	}
}

// TestLexerLiteralString tests literal string lexing with escapes
func TestLexerLiteralString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(plain)", "plain"},
		{"(with (nested) parens)", "with (nested) parens"},
		{`(esc \( \) \\ done)`, `esc ( ) \ done`},
		{`(\n\r\t)`, "\n\r\t"},
		{`(\101\102)`, "AB"},
		{`(\061)`, "1"},
	}

	for _, tt := range tests {
		lexer := NewLexer([]byte(tt.input))
		tok, err := lexer.NextToken()
		if err != nil {
			t.Errorf("NextToken(%s) failed: %v", tt.input, err)
			continue
		}
		if tok.Type != TokenString {
			t.Errorf("NextToken(%s): expected string token, got %d", tt.input, tok.Type)
			continue
		}
		if got := string(tok.Value.([]byte)); got != tt.expected {
			t.Errorf("NextToken(%s) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

// TestLexerHexString tests hex string lexing
func TestLexerHexString(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
	}{
		{"<48656C6C6F>", []byte("Hello")},
		{"<48 65 6C>", []byte("Hel")},
		{"<9>", []byte{0x90}}, // odd digit padded with zero
	}

	for _, tt := range tests {
		lexer := NewLexer([]byte(tt.input))
		tok, err := lexer.NextToken()
		if err != nil {
			t.Errorf("NextToken(%s) failed: %v", tt.input, err)
			continue
		}
		got := tok.Value.([]byte)
		if string(got) != string(tt.expected) {
			t.Errorf("NextToken(%s) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

// TestLexerNameEscape tests #xx escapes in names
func TestLexerNameEscape(t *testing.T) {
	lexer := NewLexer([]byte("/A#20B"))
	tok, err := lexer.NextToken()
	if err != nil {
		t.Fatalf("NextToken failed: %v", err)
	}
	if tok.Value.(string) != "A B" {
		t.Errorf("Expected 'A B', got '%s'", tok.Value)
	}
}

// TestLexerUnterminatedString tests error reporting
func TestLexerUnterminatedString(t *testing.T) {
	lexer := NewLexer([]byte("(never closed"))
	if _, err := lexer.NextToken(); err == nil {
		t.Error("Expected error for unterminated string")
	}
}

// TestLexerReadBytes tests exact byte reads
func TestLexerReadBytes(t *testing.T) {
	lexer := NewLexer([]byte("abcdef"))

	buf, err := lexer.ReadBytes(4)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if string(buf) != "abcd" {
		t.Errorf("Expected 'abcd', got '%s'", buf)
	}

	if _, err := lexer.ReadBytes(10); err == nil {
		t.Error("Expected error reading past end of data")
	}
}
