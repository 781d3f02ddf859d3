package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nickyhof/ShopQL/core"
)

type StatementType int

const (
	SelectStatementType StatementType = iota
	DescribeStatementType
	ShowTablesStatementType
)

type Statement interface {
	Type() StatementType
}

type SelectStatement struct {
	Query Query
}

type DescribeStatement struct {
	Table string
}

type ShowTablesStatement struct{}

func (s SelectStatement) Type() StatementType {
	return SelectStatementType
}

func (s DescribeStatement) Type() StatementType {
	return DescribeStatementType
}

func (s ShowTablesStatement) Type() StatementType {
	return ShowTablesStatementType
}

type Parser struct {
	lexer *Lexer
	input string
}

func NewParser(sql string) *Parser {
	lexer := NewLexer(sql)
	return &Parser{lexer: lexer, input: sql}
}

func malformed(format string, args ...any) error {
	return &core.MalformedQueryError{Reason: fmt.Sprintf(format, args...)}
}

func (parser *Parser) Parse() (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Select:
		return ParseSelect(parser)
	case Describe, Desc:
		return ParseDescribe(parser)
	case Show:
		return ParseShow(parser)
	case Insert, Update, Delete, Create, Drop:
		return nil, malformed("only read queries are supported, %s is not", strings.ToUpper(token.Value))
	case EOF, Semicolon:
		return nil, malformed("empty query")
	default:
		return nil, malformed("unknown statement starting with %s", token.describe())
	}
}

func ParseSelect(parser *Parser) (Statement, error) {
	query := NewQuery("")
	aggregates := 0

	token := parser.lexer.NextToken()

	switch token.Type {
	case Distinct:
		return nil, malformed("DISTINCT is not supported")
	case Wildcard:
		token = parser.lexer.NextToken()
	default:
		for {
			if isAggregateToken(token) && parser.lexer.PeekToken().Type == ParenOpen {
				aggregate, err := parseAggregate(parser, token)
				if err != nil {
					return nil, err
				}
				aggregates++
				if aggregates > 1 {
					return nil, malformed("only one aggregate function is supported per query")
				}
				query.Aggregate = aggregate
				token = parser.lexer.NextToken()
				if token.Type == As {
					token = parser.lexer.NextToken()
					if !isColumnToken(token) {
						return nil, malformed("expected alias after AS")
					}
					query.Aggregate = withAggregateAlias(query.Aggregate, strings.ToLower(token.Value))
					token = parser.lexer.NextToken()
				}
			} else if token.Type == Min || token.Type == Max {
				return nil, malformed("%s is not supported, use COUNT, SUM or AVG", strings.ToUpper(token.Value))
			} else if isColumnToken(token) {
				query.Columns = append(query.Columns, strings.ToLower(token.Value))
				token = parser.lexer.NextToken()
				if token.Type == As {
					return nil, malformed("column aliases are not supported")
				}
			} else {
				return nil, malformed("expected column name, *, COUNT, SUM or AVG, got %s", token.describe())
			}

			if token.Type != Comma {
				break
			}
			token = parser.lexer.NextToken()
		}
	}

	if token.Type != From {
		return nil, malformed("expected FROM, got %s", token.describe())
	}

	token = parser.lexer.NextToken()
	if !isColumnToken(token) {
		return nil, malformed("expected table name after FROM, got %s", token.describe())
	}
	query.Table = strings.ToLower(token.Value)

	token = parser.lexer.NextToken()

	if token.Type == Join || (token.Type == Identifier && isJoinWord(token.Value)) {
		return nil, malformed("joins are not supported")
	}
	if token.Type == Comma {
		return nil, malformed("only one table can be queried at a time")
	}

	// Parse WHERE clause
	if token.Type == Where {
		predicate, err := ParseWhere(parser)
		if err != nil {
			return nil, err
		}
		query.Predicate = predicate
		token = parser.lexer.NextToken()
	}

	// Parse GROUP BY clause
	if token.Type == Group {
		token = parser.lexer.NextToken()
		if token.Type != By {
			return nil, malformed("expected BY after GROUP")
		}
		token = parser.lexer.NextToken()
		if !isColumnToken(token) {
			return nil, malformed("expected column name in GROUP BY")
		}
		query.GroupBy = strings.ToLower(token.Value)
		if parser.lexer.PeekToken().Type == Comma {
			return nil, malformed("GROUP BY supports a single column")
		}
		token = parser.lexer.NextToken()
	}

	if token.Type == Having {
		return nil, malformed("HAVING is not supported")
	}

	// Parse ORDER BY clause
	if token.Type == Order {
		token = parser.lexer.NextToken()
		if token.Type != By {
			return nil, malformed("expected BY after ORDER")
		}
		token = parser.lexer.NextToken()
		if !isColumnToken(token) {
			return nil, malformed("expected column name in ORDER BY")
		}
		query.OrderBy = OrderBy{Column: strings.ToLower(token.Value)}

		peek := parser.lexer.PeekToken()
		if peek.Type == Asc {
			parser.lexer.NextToken()
		} else if peek.Type == Desc {
			parser.lexer.NextToken()
			query.OrderBy.Descending = true
		}
		if parser.lexer.PeekToken().Type == Comma {
			return nil, malformed("ORDER BY supports a single column")
		}
		token = parser.lexer.NextToken()
	}

	// Parse LIMIT clause
	if token.Type == Limit {
		token = parser.lexer.NextToken()
		if token.Type != Int {
			return nil, malformed("expected integer after LIMIT")
		}
		limit, err := strconv.Atoi(token.Value)
		if err != nil || limit < 0 {
			return nil, malformed("LIMIT must be a non-negative integer")
		}
		query.Limit = limit
		token = parser.lexer.NextToken()
	}

	if token.Type == Offset {
		return nil, malformed("OFFSET is not supported")
	}

	if err := expectEnd(parser, token); err != nil {
		return nil, err
	}

	if err := validateSelect(&query); err != nil {
		return nil, err
	}

	return SelectStatement{Query: query}, nil
}

// validateSelect checks clause combinations the grammar alone cannot rule out.
func validateSelect(query *Query) error {
	if query.Grouped() {
		for _, col := range query.Columns {
			if col != query.GroupBy {
				return malformed("column %s must appear in GROUP BY", col)
			}
		}
		// Grouped output always leads with the group column.
		query.Columns = nil
		return nil
	}

	if _, none := query.Aggregate.(NoAggregate); !none && len(query.Columns) > 0 {
		return malformed("column %s must appear in GROUP BY when used with an aggregate", query.Columns[0])
	}

	return nil
}

func parseAggregate(parser *Parser, function Token) (Aggregate, error) {
	name := strings.ToUpper(function.Value)

	parser.lexer.NextToken() // consume '('

	token := parser.lexer.NextToken()
	var column string
	switch {
	case token.Type == Wildcard:
		if function.Type != CountKeyword {
			return nil, malformed("%s(*) is not supported, name a column", name)
		}
		column = "*"
	case isColumnToken(token):
		column = strings.ToLower(token.Value)
	default:
		return nil, malformed("expected column name in %s()", name)
	}

	token = parser.lexer.NextToken()
	if token.Type != ParenClose {
		return nil, malformed("expected ')' after %s(%s", name, column)
	}

	switch function.Type {
	case CountKeyword:
		return Count{Column: column}, nil
	case SumKeyword:
		return Sum{Column: column}, nil
	default:
		return Avg{Column: column}, nil
	}
}

func withAggregateAlias(aggregate Aggregate, alias string) Aggregate {
	switch a := aggregate.(type) {
	case Count:
		a.Alias = alias
		return a
	case Sum:
		a.Alias = alias
		return a
	case Avg:
		a.Alias = alias
		return a
	default:
		return aggregate
	}
}

// ParseWhere parses a single comparison. An empty literal yields NoPredicate.
func ParseWhere(parser *Parser) (Predicate, error) {
	token := parser.lexer.NextToken()

	if token.Type == Not {
		return nil, malformed("NOT is not supported in WHERE")
	}
	if !isColumnToken(token) {
		return nil, malformed("expected column name in WHERE clause, got %s", token.describe())
	}
	column := strings.ToLower(token.Value)

	token = parser.lexer.NextToken()

	var operator ComparisonOperator
	like := false
	switch token.Type {
	case Equals:
		operator = EqualsOperator
	case LessThan:
		operator = LessThanOperator
	case GreaterThan:
		operator = GreaterThanOperator
	case LessThanOrEqual:
		operator = LessThanOrEqualOperator
	case GreaterThanOrEqual:
		operator = GreaterThanOrEqualOperator
	case LikeKeyword:
		like = true
	case NotEquals:
		return nil, malformed("%s is not supported, use =, <, >, <=, >= or LIKE", token.Value)
	case In, Is, Not:
		return nil, malformed("%s is not supported, use =, <, >, <=, >= or LIKE", strings.ToUpper(token.Value))
	default:
		return nil, malformed("expected operator in WHERE clause, got %s", token.describe())
	}

	token = parser.lexer.NextToken()
	if token.Type != String && token.Type != Int && token.Type != Float && !isColumnToken(token) {
		return nil, malformed("expected value in WHERE clause, got %s", token.describe())
	}
	literal := strings.TrimSpace(token.Value)

	peek := parser.lexer.PeekToken()
	if peek.Type == And || peek.Type == Or {
		return nil, malformed("compound predicates (AND/OR) are not supported, use a single WHERE condition")
	}

	if literal == "" {
		return NoPredicate{}, nil
	}
	if like {
		return Like{Column: column, Pattern: literal}, nil
	}
	return Comparison{Column: column, Operator: operator, Literal: literal}, nil
}

// ParseDescribe parses DESCRIBE table and DESC table.
func ParseDescribe(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	if !isColumnToken(token) {
		return nil, &core.MalformedDescribeError{Input: parser.input}
	}
	statement := DescribeStatement{Table: strings.ToLower(token.Value)}

	token = parser.lexer.NextToken()
	if token.Type == Semicolon {
		token = parser.lexer.NextToken()
	}
	if token.Type != EOF {
		return nil, &core.MalformedDescribeError{Input: parser.input}
	}
	return statement, nil
}

func ParseShow(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	if token.Type != TablesIdentifier {
		return nil, malformed("expected TABLES after SHOW")
	}
	if err := expectEnd(parser, parser.lexer.NextToken()); err != nil {
		return nil, err
	}
	return ShowTablesStatement{}, nil
}

func expectEnd(parser *Parser, token Token) error {
	if token.Type == Semicolon {
		token = parser.lexer.NextToken()
	}
	if token.Type != EOF {
		return malformed("unexpected %s", token.describe())
	}
	return nil
}

func isColumnToken(token Token) bool {
	switch token.Type {
	case Identifier, CountKeyword, SumKeyword, AvgKeyword, Min, Max, TablesIdentifier:
		return true
	default:
		return false
	}
}

func isAggregateToken(token Token) bool {
	return token.Type == CountKeyword || token.Type == SumKeyword || token.Type == AvgKeyword
}

func isJoinWord(word string) bool {
	switch strings.ToUpper(word) {
	case "INNER", "LEFT", "RIGHT", "OUTER", "CROSS":
		return true
	default:
		return false
	}
}

func parse(sql string) (Statement, error) {
	parser := NewParser(sql)

	return parser.Parse()
}
