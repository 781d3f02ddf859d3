// Package sql provides lexing and parsing for the ShopQL query language.
//
// The grammar is a small read-only SQL subset: one table per query, at most
// one WHERE comparison, at most one aggregate, an optional single-column
// GROUP BY and ORDER BY, and an optional LIMIT. Everything else is rejected
// with a *core.MalformedQueryError instead of being silently ignored.
//
// # Lexer Usage
//
//	lexer := sql.NewLexer("SELECT * FROM products")
//	for {
//	    token := lexer.NextToken()
//	    if token.Type == sql.EOF {
//	        break
//	    }
//	    fmt.Printf("Token: %s\n", token)
//	}
//
// # Parser Usage
//
//	parser := sql.NewParser("SELECT name, price FROM products WHERE price > 1000 ORDER BY price DESC LIMIT 5")
//	statement, err := parser.Parse()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Supported Statements
//
// The parser supports the following statement types:
//   - SelectStatement
//   - DescribeStatement (DESCRIBE table or DESC table)
//   - ShowTablesStatement
package sql
