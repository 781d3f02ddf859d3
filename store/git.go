package store

import (
	"context"
	"strings"
	"time"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/op"
	"github.com/nickyhof/ShopQL/ps"
)

// DefaultIdentity signs commits made by ShopQL itself.
var DefaultIdentity = core.Identity{Name: "ShopQL", Email: "shopql@localhost"}

// GitStore keeps each table as a collection in a git repository, so every
// import is a commit.
type GitStore struct {
	persistence *ps.Persistence
	identity    core.Identity
}

func NewGitStore(persistence *ps.Persistence, identity core.Identity) *GitStore {
	if identity.Name == "" {
		identity = DefaultIdentity
	}
	return &GitStore{persistence: persistence, identity: identity}
}

// OpenGitStore opens the repository at dir, or an in-memory one when dir
// is empty.
func OpenGitStore(dir string, identity core.Identity) (*GitStore, error) {
	var (
		persistence *ps.Persistence
		err         error
	)
	if dir == "" {
		persistence, err = ps.NewMemoryPersistence()
	} else {
		persistence, err = ps.NewFilePersistence(dir)
	}
	if err != nil {
		return nil, err
	}
	return NewGitStore(persistence, identity), nil
}

func (s *GitStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return op.GetCollection(strings.ToLower(table), s.persistence).Records()
}

func (s *GitStore) ReplaceAll(ctx context.Context, table string, records []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := op.GetCollection(strings.ToLower(table), s.persistence).Replace(records, s.identity)
	return err
}

// AppendAll commits records after the last record of table. Appending
// nothing is a no-op.
func (s *GitStore) AppendAll(ctx context.Context, table string, records []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	_, err := op.GetCollection(strings.ToLower(table), s.persistence).Append(records, s.identity)
	return err
}

// Tables lists the collections present in the repository.
func (s *GitStore) Tables() []string {
	return op.CollectionNames(s.persistence)
}

// History lists commits newer than since, newest first.
func (s *GitStore) History(since time.Time) []ps.Transaction {
	return s.persistence.TransactionsSince(since)
}

// Head returns the latest commit, or the zero Transaction for an empty
// repository.
func (s *GitStore) Head() ps.Transaction {
	return s.persistence.LatestTransaction()
}
