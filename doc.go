// Package ShopQL provides the admin query console of a small storefront.
//
// An operator types a restricted, SQL-like query against the shop's record
// collections (products, orders, customers, categories, cart, wishlist) and
// gets back a formatted table. Every query reads fresh data from a record
// store: Supabase/PostgREST, PostgreSQL, SQLite, DuckDB, a git repository,
// a backup snapshot or memory.
//
// # Quick Start
//
//	s := store.NewMemoryStore(map[string][]core.Record{
//	    "orders": {{"id": "o1", "total": 100, "status": "Pending"}},
//	})
//	shop := ShopQL.Open(s)
//	engine := shop.Engine()
//
//	result, _ := engine.Execute(ctx, "SELECT status, COUNT(*) FROM orders GROUP BY status")
//	result.Display()
//
// # Supported Queries
//
//   - SELECT *, a column list, or one aggregate: COUNT(*), COUNT(col),
//     SUM(col), AVG(col), optionally AS alias
//   - FROM one catalog table or alias (adminproducts)
//   - WHERE with one comparison: =, >, <, >=, <= or LIKE '%text%'
//   - GROUP BY one column, ORDER BY one column ASC/DESC, LIMIT n
//   - DESCRIBE table (or DESC table)
//   - SHOW TABLES
//
// Anything else is rejected with a MalformedQueryError listing the
// supported syntax.
package ShopQL
