package ShopQL

import (
	"context"
	"log/slog"

	"github.com/nickyhof/ShopQL/config"
	"github.com/nickyhof/ShopQL/db"
	"github.com/nickyhof/ShopQL/store"
)

type Instance struct {
	Store   store.RecordStore
	options []db.Option
}

func Open(recordStore store.RecordStore, opts ...db.Option) *Instance {
	return &Instance{
		Store:   recordStore,
		options: opts,
	}
}

// OpenConfig opens the configured record store and carries the engine
// settings of cfg into every Engine.
func OpenConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Instance, error) {
	recordStore, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, err
	}

	return Open(recordStore,
		db.WithFetchTimeout(cfg.Engine.FetchTimeout),
		db.WithMaxRows(cfg.Engine.MaxRows),
		db.WithLogger(logger),
	), nil
}

// Engine returns a query engine over the instance's store. opts are applied
// after the instance defaults.
func (instance *Instance) Engine(opts ...db.Option) *db.Engine {
	all := append(append([]db.Option{}, instance.options...), opts...)
	return db.NewEngine(instance.Store, all...)
}

// Stats summarises the store: records per catalog table and their total.
type Stats struct {
	Tables []db.TableCount `json:"tables"`
	Total  int             `json:"total"`
}

func (instance *Instance) Stats(ctx context.Context) (Stats, error) {
	counts, err := instance.Engine().Counts(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Tables: counts}
	for _, count := range counts {
		stats.Total += count.Records
	}
	return stats, nil
}

func (instance *Instance) Close() error {
	return store.Close(instance.Store)
}
