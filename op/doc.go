// Package op provides collection-level operations on top of the git
// persistence layer.
//
// # CollectionOp
//
// CollectionOp wraps one collection of JSON records:
//
//	orders := op.GetCollection("orders", persistence)
//
//	records, err := orders.Records()  // Decode all records in order
//
//	// Write operations, one commit each
//	orders.Replace(records, identity)
//	orders.Append(records, identity)
//
// # Architecture
//
// The layering is:
//
//	Query Engine (db/)
//	     ↓
//	Record Store (store/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Persistence (ps/)
//	     ↓
//	Git Storage (go-git)
package op
