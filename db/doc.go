// Package db provides the query execution engine for ShopQL.
//
// The Engine type is the main entry point. It parses a query, resolves the
// table against the catalog, fetches fresh records from a store.RecordStore
// and evaluates filter, grouping or aggregation, ordering and limit in that
// order before formatting the rows for display.
//
// # Engine Usage
//
//	engine := db.NewEngine(recordStore, db.WithFetchTimeout(5*time.Second))
//	result, err := engine.Execute(ctx, "SELECT * FROM orders WHERE total > 150")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display()
//
// # Results
//
// QueryResult holds the output columns, at most 50 formatted rows, the full
// row count and whether rows were truncated. Currency columns render in
// Indian Rupees, date columns as "January 2, 2006", arrays as "N items" and
// missing values as NULL.
//
// Evaluate is the pure core of the engine and can be used directly on
// in-memory records.
package db
