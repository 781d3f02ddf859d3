package sql

import (
	"strconv"
	"strings"
)

type Token struct {
	Type  TokenType
	Value string
}

type TokenType int

const (
	Identifier TokenType = iota
	TablesIdentifier
	Show
	Describe
	Wildcard
	String
	Int
	Float
	Comma
	Semicolon
	ParenOpen
	ParenClose
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	And
	Or
	Not
	LikeKeyword
	In
	Is
	Null
	Select
	From
	Where
	Limit
	Offset
	Order
	By
	Asc
	Desc
	CountKeyword
	SumKeyword
	AvgKeyword
	Min
	Max
	Distinct
	Group
	Having
	Join
	As
	Insert
	Update
	Delete
	Create
	Drop
	EOF
	Unknown
)

// keywords maps upper-cased reserved words to their token type. Words
// outside the map lex as identifiers.
var keywords = map[string]TokenType{
	"SELECT":   Select,
	"FROM":     From,
	"WHERE":    Where,
	"LIMIT":    Limit,
	"OFFSET":   Offset,
	"ORDER":    Order,
	"GROUP":    Group,
	"BY":       By,
	"ASC":      Asc,
	"DESC":     Desc,
	"DESCRIBE": Describe,
	"SHOW":     Show,
	"TABLES":   TablesIdentifier,
	"COUNT":    CountKeyword,
	"SUM":      SumKeyword,
	"AVG":      AvgKeyword,
	"MIN":      Min,
	"MAX":      Max,
	"DISTINCT": Distinct,
	"HAVING":   Having,
	"JOIN":     Join,
	"AS":       As,
	"AND":      And,
	"OR":       Or,
	"NOT":      Not,
	"LIKE":     LikeKeyword,
	"IN":       In,
	"IS":       Is,
	"NULL":     Null,
	"INSERT":   Insert,
	"UPDATE":   Update,
	"DELETE":   Delete,
	"CREATE":   Create,
	"DROP":     Drop,
}

var punctuation = map[byte]TokenType{
	',': Comma,
	';': Semicolon,
	'(': ParenOpen,
	')': ParenClose,
	'*': Wildcard,
}

var operators = map[string]TokenType{
	"=":  Equals,
	"==": Equals,
	"!=": NotEquals,
	"<>": NotEquals,
	"<":  LessThan,
	">":  GreaterThan,
	"<=": LessThanOrEqual,
	">=": GreaterThanOrEqual,
}

var tokenNames = map[TokenType]string{
	Wildcard:           "Wildcard",
	Comma:              "Comma",
	Semicolon:          "Semicolon",
	ParenOpen:          "ParenOpen",
	ParenClose:         "ParenClose",
	Equals:             "Equals",
	NotEquals:          "NotEquals",
	LessThan:           "LessThan",
	GreaterThan:        "GreaterThan",
	LessThanOrEqual:    "LessThanOrEqual",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	EOF:                "EOF",
}

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		return "Identifier(" + token.Value + ")"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	case Float:
		return "Float(" + token.Value + ")"
	case Unknown:
		return "Unknown(" + token.Value + ")"
	}
	if name, ok := tokenNames[token.Type]; ok {
		return name
	}
	return strings.ToUpper(token.Value)
}

// describe renders a token for error messages.
func (token Token) describe() string {
	switch token.Type {
	case EOF:
		return "end of query"
	case String:
		return "'" + token.Value + "'"
	default:
		return token.Value
	}
}

// Lexer splits a query into tokens on demand.
type Lexer struct {
	src string
	pos int
}

func NewLexer(sql string) *Lexer {
	return &Lexer{src: sql}
}

func (lexer *Lexer) at(i int) byte {
	if i >= len(lexer.src) {
		return 0
	}
	return lexer.src[i]
}

// span advances past every byte accepted by keep and returns them.
func (lexer *Lexer) span(keep func(byte) bool) string {
	start := lexer.pos
	for lexer.pos < len(lexer.src) && keep(lexer.src[lexer.pos]) {
		lexer.pos++
	}
	return lexer.src[start:lexer.pos]
}

func (lexer *Lexer) NextToken() Token {
	lexer.span(isSpace)

	ch := lexer.at(lexer.pos)
	switch {
	case lexer.pos >= len(lexer.src):
		return Token{Type: EOF}
	case ch == '\'' || ch == '"':
		return lexer.quoted(ch)
	case isOperator(ch):
		op := lexer.span(isOperator)
		if typ, ok := operators[op]; ok {
			return Token{Type: typ, Value: op}
		}
		return Token{Type: Unknown, Value: op}
	case isWordChar(ch):
		return classifyWord(lexer.span(isWordChar))
	}

	lexer.pos++
	if typ, ok := punctuation[ch]; ok {
		return Token{Type: typ, Value: string(ch)}
	}
	return Token{Type: Unknown, Value: string(ch)}
}

func (lexer *Lexer) PeekToken() Token {
	saved := lexer.pos
	token := lexer.NextToken()
	lexer.pos = saved
	return token
}

// quoted reads a literal opened by quote. A doubled quote stands for one
// quote character; a literal left open lexes as Unknown.
func (lexer *Lexer) quoted(quote byte) Token {
	var sb strings.Builder
	lexer.pos++
	for lexer.pos < len(lexer.src) {
		ch := lexer.src[lexer.pos]
		lexer.pos++
		if ch != quote {
			sb.WriteByte(ch)
			continue
		}
		if lexer.at(lexer.pos) != quote {
			return Token{Type: String, Value: sb.String()}
		}
		sb.WriteByte(quote)
		lexer.pos++
	}
	return Token{Type: Unknown, Value: sb.String()}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// isWordChar accepts identifier characters plus the characters that appear
// in bare literals such as emails, dates and LIKE patterns.
func isWordChar(ch byte) bool {
	if isDigit(ch) || ch >= 0x80 || ('a' <= ch|0x20 && ch|0x20 <= 'z') {
		return true
	}
	return strings.IndexByte("_.%@-+:/", ch) >= 0
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isOperator(ch byte) bool {
	return strings.IndexByte("=!<>", ch) >= 0
}

// classifyWord types a bare word: numbers first, then keywords.
func classifyWord(word string) Token {
	if strings.IndexByte("0123456789-+.", word[0]) >= 0 {
		if _, err := strconv.ParseInt(word, 10, 64); err == nil {
			return Token{Type: Int, Value: word}
		}
		if _, err := strconv.ParseFloat(word, 64); err == nil {
			return Token{Type: Float, Value: word}
		}
		return Token{Type: Identifier, Value: word}
	}
	if typ, ok := keywords[strings.ToUpper(word)]; ok {
		return Token{Type: typ, Value: word}
	}
	return Token{Type: Identifier, Value: word}
}

func tokenize(sql string) []Token {
	lexer := NewLexer(sql)
	var tokens []Token
	for {
		token := lexer.NextToken()
		tokens = append(tokens, token)
		if token.Type == EOF {
			return tokens
		}
	}
}
