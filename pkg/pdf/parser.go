package pdf

import (
	"bytes"
	"fmt"
	"io"
)

// Parser parses PDF objects from tokens
type Parser struct {
	lexer  *Lexer
	tokens []Token
	pos    int
}

// NewParser creates a new parser over data
func NewParser(data []byte) *Parser {
	return &Parser{lexer: NewLexer(data)}
}

// newParser creates a parser that continues from an existing lexer position
func newParser(l *Lexer) *Parser {
	return &Parser{lexer: l}
}

// nextToken gets the next token, buffering for lookahead
func (p *Parser) nextToken() (Token, error) {
	if p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		return tok, nil
	}

	tok, err := p.lexer.NextToken()
	if err != nil {
		return Token{}, err
	}

	p.tokens = append(p.tokens, tok)
	p.pos++
	return tok, nil
}

// peekToken peeks at the next token without consuming it
func (p *Parser) peekToken() (Token, error) {
	tok, err := p.nextToken()
	if err != nil {
		return Token{}, err
	}
	p.pos--
	return tok, nil
}

// peekTokenN peeks at the nth token ahead (0-indexed)
func (p *Parser) peekTokenN(n int) (Token, error) {
	for i := len(p.tokens); i <= p.pos+n; i++ {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return Token{}, err
		}
		p.tokens = append(p.tokens, tok)
	}
	return p.tokens[p.pos+n], nil
}

// ParseObject parses a single PDF object
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenNull:
		return Null{}, nil

	case TokenBoolean:
		return Boolean(tok.Value.(bool)), nil

	case TokenInteger:
		// "num gen R" lookahead for references
		next1, err := p.peekToken()
		if err == nil && next1.Type == TokenInteger {
			next2, err := p.peekTokenN(1)
			if err == nil && next2.Type == TokenRef {
				p.nextToken() // generation number
				p.nextToken() // R
				return Ref(uint32(tok.Value.(int64)), uint16(next1.Value.(int64))), nil
			}
		}
		return Integer(tok.Value.(int64)), nil

	case TokenReal:
		return Real(tok.Value.(float64)), nil

	case TokenString:
		return String{Value: tok.Value.([]byte)}, nil

	case TokenHexString:
		return String{Value: tok.Value.([]byte), IsHex: true}, nil

	case TokenName:
		return Name(tok.Value.(string)), nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDictionary()

	default:
		return nil, fmt.Errorf("unexpected token type %d at position %d", tok.Type, tok.Pos)
	}
}

// parseArray parses a PDF array [...]
func (p *Parser) parseArray() (Array, error) {
	var arr Array

	for {
		tok, err := p.peekToken()
		if err != nil {
			return nil, err
		}

		if tok.Type == TokenArrayEnd {
			p.nextToken()
			return arr, nil
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, err
		}

		arr = append(arr, obj)
	}
}

// parseDictionary parses a PDF dictionary <<...>>
func (p *Parser) parseDictionary() (Dictionary, error) {
	dict := make(Dictionary)

	for {
		tok, err := p.peekToken()
		if err != nil {
			return nil, err
		}

		if tok.Type == TokenDictEnd {
			p.nextToken()
			return dict, nil
		}

		keyTok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		if keyTok.Type != TokenName {
			return nil, fmt.Errorf("expected name as dictionary key at position %d", keyTok.Pos)
		}

		value, err := p.ParseObject()
		if err != nil {
			return nil, err
		}

		dict[Name(keyTok.Value.(string))] = value
	}
}

// ParseIndirectObject parses an indirect object definition
// (num gen obj ... endobj), including stream payloads.
func (p *Parser) ParseIndirectObject() (ObjectID, Object, error) {
	numTok, err := p.nextToken()
	if err != nil {
		return ObjectID{}, nil, err
	}
	if numTok.Type != TokenInteger {
		return ObjectID{}, nil, fmt.Errorf("expected object number at position %d", numTok.Pos)
	}

	genTok, err := p.nextToken()
	if err != nil {
		return ObjectID{}, nil, err
	}
	if genTok.Type != TokenInteger {
		return ObjectID{}, nil, fmt.Errorf("expected generation number at position %d", genTok.Pos)
	}

	id := ObjectID{
		Number:     uint32(numTok.Value.(int64)),
		Generation: uint16(genTok.Value.(int64)),
	}

	objTok, err := p.nextToken()
	if err != nil {
		return ObjectID{}, nil, err
	}
	if objTok.Type != TokenObjStart {
		return ObjectID{}, nil, fmt.Errorf("expected 'obj' keyword at position %d", objTok.Pos)
	}

	obj, err := p.ParseObject()
	if err != nil {
		return ObjectID{}, nil, err
	}

	nextTok, err := p.peekToken()
	if err == nil && nextTok.Type == TokenStreamStart {
		p.nextToken() // stream keyword

		dict, ok := obj.(Dictionary)
		if !ok {
			return ObjectID{}, nil, fmt.Errorf("stream must have dictionary at position %d", nextTok.Pos)
		}

		streamData, err := p.readStreamData(dict)
		if err != nil {
			return ObjectID{}, nil, err
		}

		obj = Stream{
			Dictionary: dict,
			Data:       streamData,
		}

		endTok, err := p.nextToken()
		if err != nil {
			return ObjectID{}, nil, err
		}
		if endTok.Type != TokenStreamEnd {
			return ObjectID{}, nil, fmt.Errorf("expected 'endstream' at position %d", endTok.Pos)
		}
	}

	endTok, err := p.nextToken()
	if err != nil {
		return ObjectID{}, nil, err
	}
	if endTok.Type != TokenObjEnd {
		return ObjectID{}, nil, fmt.Errorf("expected 'endobj' keyword at position %d", endTok.Pos)
	}

	return id, obj, nil
}

// readStreamData reads the raw stream payload
func (p *Parser) readStreamData(dict Dictionary) ([]byte, error) {
	// Skip the end-of-line after 'stream'. Anything else on that line is
	// already stream data.
	line, err := p.lexer.ReadLine()
	if err != nil {
		return nil, err
	}
	var prefix []byte
	if len(line) > 0 {
		prefix = line
	}

	lengthObj := dict.Get("Length")
	if lengthObj == nil {
		return nil, fmt.Errorf("stream missing Length")
	}

	var length int64
	switch l := lengthObj.(type) {
	case Integer:
		length = int64(l)
	case Reference:
		// Length stored as an indirect object; scan for the end marker
		// instead of chasing it.
		return p.readStreamUntilEnd(prefix)
	default:
		return nil, fmt.Errorf("invalid stream Length type")
	}

	data, err := p.lexer.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}

	if len(prefix) > 0 {
		data = append(append([]byte{}, prefix...), data...)
	}

	return data, nil
}

// readStreamUntilEnd reads stream data until 'endstream' is found
func (p *Parser) readStreamUntilEnd(prefix []byte) ([]byte, error) {
	var buf bytes.Buffer
	if len(prefix) > 0 {
		buf.Write(prefix)
		buf.WriteByte('\n')
	}

	endMarker := []byte("endstream")

	for {
		lineStart := p.lexer.pos
		line, err := p.lexer.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		if idx := bytes.Index(line, endMarker); idx >= 0 {
			if idx > 0 {
				buf.Write(line[:idx])
			}
			// rewind so the endstream keyword is still seen by the lexer
			p.lexer.pos = lineStart + idx
			break
		}

		buf.Write(line)
		buf.WriteByte('\n')

		if p.lexer.eof() {
			break
		}
	}

	data := buf.Bytes()
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}

	return data, nil
}
