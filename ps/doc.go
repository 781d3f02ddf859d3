// Package ps provides the git-backed persistence layer used by the git
// record store.
//
// The persistence layer is backed by Git, using go-git for storage. Each
// collection is a top-level directory holding one JSON blob per record,
// named by position so that tree order is insertion order. Every write
// creates a Git commit, so a store's full history is kept.
//
// # Memory Persistence
//
// For testing or ephemeral stores:
//
//	persistence, err := ps.NewMemoryPersistence()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Persistence
//
// For persistent storage:
//
//	persistence, err := ps.NewFilePersistence("/path/to/data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Transaction Batching
//
// Writes go through TransactionBuilder, so any number of record changes
// become a single commit:
//
//	txn, _ := persistence.BeginTransaction()
//	txn.AddDelete("orders", "")
//	txn.AddWrite("orders", ps.RecordKey(0), data)
//	result, _ := txn.Commit(identity, "Loading orders")
package ps
