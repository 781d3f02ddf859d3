package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/sql"
	"github.com/nickyhof/ShopQL/store"
)

// DefaultFetchTimeout bounds each Record Store fetch.
const DefaultFetchTimeout = 10 * time.Second

// Engine executes queries against a Record Store. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	store        store.RecordStore
	catalog      *core.Catalog
	fetchTimeout time.Duration
	maxRows      int
	logger       *slog.Logger
}

type Option func(*Engine)

func WithCatalog(catalog *core.Catalog) Option {
	return func(engine *Engine) {
		if catalog != nil {
			engine.catalog = catalog
		}
	}
}

func WithFetchTimeout(timeout time.Duration) Option {
	return func(engine *Engine) {
		if timeout > 0 {
			engine.fetchTimeout = timeout
		}
	}
}

// WithMaxRows sets how many rows a result renders before truncating.
func WithMaxRows(maxRows int) Option {
	return func(engine *Engine) {
		if maxRows > 0 {
			engine.maxRows = maxRows
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

func NewEngine(recordStore store.RecordStore, opts ...Option) *Engine {
	engine := &Engine{
		store:        recordStore,
		catalog:      core.DefaultCatalog(),
		fetchTimeout: DefaultFetchTimeout,
		maxRows:      DefaultMaxRows,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (engine *Engine) Catalog() *core.Catalog {
	return engine.catalog
}

// Execute parses and runs one query. Every call fetches fresh data.
func (engine *Engine) Execute(ctx context.Context, query string) (QueryResult, error) {
	startTime := time.Now()

	parser := sql.NewParser(query)
	statement, err := parser.Parse()
	if err != nil {
		observeQuery("invalid", ErrorKind(err), time.Since(startTime).Seconds(), 0)
		return QueryResult{}, err
	}

	var (
		result QueryResult
		kind   string
	)
	switch statement.Type() {
	case sql.SelectStatementType:
		kind = "select"
		result, err = engine.executeSelectStatement(ctx, statement.(sql.SelectStatement))
	case sql.DescribeStatementType:
		kind = "describe"
		result, err = engine.executeDescribeStatement(statement.(sql.DescribeStatement))
	case sql.ShowTablesStatementType:
		kind = "show_tables"
		result, err = engine.executeShowTablesStatement(ctx)
	default:
		err = fmt.Errorf("unsupported statement type: %v", statement.Type())
	}

	elapsed := time.Since(startTime).Seconds()
	if err != nil {
		observeQuery(kind, ErrorKind(err), elapsed, 0)
		engine.logger.Debug("query failed", "kind", kind, "error", err)
		return QueryResult{}, err
	}

	result.ExecutionTimeSec = elapsed
	observeQuery(kind, statusOK, elapsed, result.RowCount)
	engine.logger.Debug("query executed",
		"kind", kind,
		"rows", result.RowCount,
		"truncated", result.Truncated,
		"duration", time.Duration(elapsed*float64(time.Second)))

	return result, nil
}

func (engine *Engine) executeSelectStatement(ctx context.Context, statement sql.SelectStatement) (QueryResult, error) {
	table, err := engine.resolve(statement.Query.Table)
	if err != nil {
		return QueryResult{}, err
	}

	records, err := engine.fetch(ctx, table.Name)
	if err != nil {
		return QueryResult{}, err
	}

	evaluation := Evaluate(statement.Query, table, records)
	return newQueryResult(evaluation, engine.maxRows), nil
}

func (engine *Engine) executeDescribeStatement(statement sql.DescribeStatement) (QueryResult, error) {
	table, err := engine.resolve(statement.Table)
	if err != nil {
		return QueryResult{}, err
	}

	rows := make([]core.Record, len(table.Columns))
	for i, col := range table.Columns {
		rows[i] = core.Record{"column_name": col.Name, "type": col.Type}
	}

	return newQueryResult(Evaluation{
		Columns: []string{"column_name", "type"},
		Kinds:   []ColumnKind{TextKind, TextKind},
		Rows:    rows,
	}, engine.maxRows), nil
}

func (engine *Engine) executeShowTablesStatement(ctx context.Context) (QueryResult, error) {
	counts, err := engine.Counts(ctx)
	if err != nil {
		return QueryResult{}, err
	}

	rows := make([]core.Record, len(counts))
	for i, count := range counts {
		rows[i] = core.Record{"table_name": count.Table, "records": count.Records}
	}

	return newQueryResult(Evaluation{
		Columns: []string{"table_name", "records"},
		Kinds:   []ColumnKind{TextKind, TextKind},
		Rows:    rows,
	}, engine.maxRows), nil
}

// TableCount is the number of records held by one catalog table.
type TableCount struct {
	Table   string `json:"table"`
	Records int    `json:"records"`
}

// Counts fetches every catalog table concurrently and reports its size in
// catalog order. Any failed fetch fails the whole call.
func (engine *Engine) Counts(ctx context.Context) ([]TableCount, error) {
	tables := engine.catalog.TableNames()
	counts := make([]TableCount, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range tables {
		g.Go(func() error {
			records, err := engine.fetch(gctx, name)
			if err != nil {
				return err
			}
			counts[i] = TableCount{Table: name, Records: len(records)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (engine *Engine) resolve(name string) (core.Table, error) {
	table, ok := engine.catalog.Lookup(name)
	if !ok {
		return core.Table{}, &core.UnknownTableError{Table: name, Known: engine.catalog.TableNames()}
	}
	return table, nil
}

// fetch reads a table under the engine's fetch timeout. Store failures are
// wrapped in a DataFetchError.
func (engine *Engine) fetch(ctx context.Context, table string) ([]core.Record, error) {
	if engine.store == nil {
		return nil, &core.DataFetchError{Table: table, Err: errors.New("no record store configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, engine.fetchTimeout)
	defer cancel()

	type fetched struct {
		records []core.Record
		err     error
	}
	// Buffered so a store that ignores ctx can finish without a reader.
	done := make(chan fetched, 1)

	startTime := time.Now()
	go func() {
		records, err := engine.store.FetchAll(ctx, table)
		done <- fetched{records, err}
	}()

	var (
		records []core.Record
		err     error
	)
	select {
	case result := <-done:
		records, err = result.records, result.err
		if err == nil {
			err = ctx.Err()
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	fetchDuration.WithLabelValues(table).Observe(time.Since(startTime).Seconds())

	if err != nil {
		engine.logger.Warn("record store fetch failed", "table", table, "error", err)
		return nil, &core.DataFetchError{Table: table, Err: err}
	}
	return records, nil
}

// ErrorKind names the category of a query error: unknown_table, malformed,
// fetch_error, or error for anything else.
func ErrorKind(err error) string {
	var (
		unknownTable      *core.UnknownTableError
		malformedQuery    *core.MalformedQueryError
		malformedDescribe *core.MalformedDescribeError
		dataFetch         *core.DataFetchError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unknownTable):
		return "unknown_table"
	case errors.As(err, &malformedQuery), errors.As(err, &malformedDescribe):
		return "malformed"
	case errors.As(err, &dataFetch):
		return "fetch_error"
	default:
		return "error"
	}
}
