// Package core provides core types used throughout ShopQL.
//
// The package defines the shop's record model, the fixed table catalog,
// the Identity used for git-backed writes, and the typed errors surfaced by
// the query engine.
//
// # Records
//
// A Record is a schemaless row. Columns vary by table and some rows omit
// fields, so all access goes through get-or-default helpers:
//
//	rec := core.Record{"id": 1, "total": "250", "items": []any{...}}
//	total, ok := rec.Float("total")   // 250, true
//	name, ok := rec.String("name")    // "", false
//
// # Catalog
//
// The catalog lists the queryable tables together with their DESCRIBE
// schema, the default projection, and the GROUP BY fallback bucket:
//
//	catalog := core.DefaultCatalog()
//	table, ok := catalog.Lookup("adminproducts") // resolves to products
//	fmt.Println(table.DefaultColumns)            // [id name category price stock brand]
//
// # Errors
//
// UnknownTableError, MalformedQueryError, MalformedDescribeError and
// DataFetchError are terminal for a single query execution and never affect
// later ones.
package core
