package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nickyhof/ShopQL"
	"github.com/nickyhof/ShopQL/config"
	"github.com/nickyhof/ShopQL/db"
	"github.com/nickyhof/ShopQL/store"
)

var errInvalidHandle = errors.New("invalid handle")

// Handle represents an open ShopQL instance
type Handle struct {
	instance *ShopQL.Instance
	engine   *db.Engine
}

type registry struct {
	mu      sync.Mutex
	handles map[int]*Handle
	next    int
}

var handles = &registry{handles: make(map[int]*Handle), next: 1}

func (r *registry) add(instance *ShopQL.Instance) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	r.handles[id] = &Handle{instance: instance, engine: instance.Engine()}
	return id
}

func (r *registry) get(id int) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

func (r *registry) remove(id int) error {
	r.mu.Lock()
	h, ok := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()

	if !ok {
		return errInvalidHandle
	}
	return h.instance.Close()
}

// Response mirrors the server protocol for consistency
type Response struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Type      string          `json:"type,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type QueryResponse struct {
	Columns   []string   `json:"columns"`
	Data      [][]string `json:"data"`
	RowCount  int        `json:"row_count"`
	Truncated bool       `json:"truncated,omitempty"`
	Notice    string     `json:"notice,omitempty"`
	TimeMs    float64    `json:"time_ms"`
}

// openConfig opens the store described by a config file, or by defaults and
// SHOPQL_ environment variables when path is empty.
func openConfig(path string) (int, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return 0, err
	}
	instance, err := ShopQL.OpenConfig(context.Background(), cfg, cfg.Log.NewLogger(nil))
	if err != nil {
		return 0, err
	}
	return handles.add(instance), nil
}

// openBackup loads a backup file into a fresh in-memory store.
func openBackup(location string) (int, error) {
	ctx := context.Background()
	backup, err := store.ReadBackup(ctx, location, nil)
	if err != nil {
		return 0, err
	}

	s := store.NewMemoryStore(nil)
	if err := store.Import(ctx, s, backup); err != nil {
		return 0, err
	}
	return handles.add(ShopQL.Open(s)), nil
}

func execute(id int, query string) Response {
	h, ok := handles.get(id)
	if !ok {
		return errorResponse(errInvalidHandle)
	}

	result, err := h.engine.Execute(context.Background(), query)
	if err != nil {
		return errorResponse(err)
	}

	rows := result.Rows
	if rows == nil {
		rows = [][]string{}
	}
	data, _ := json.Marshal(QueryResponse{
		Columns:   result.Columns,
		Data:      rows,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		Notice:    result.Notice(),
		TimeMs:    result.ExecutionTimeSec * 1000,
	})
	return Response{Success: true, Type: "query", Result: data}
}

func errorResponse(err error) Response {
	return Response{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: db.ErrorKind(err),
	}
}

func encode(resp Response) string {
	data, _ := json.Marshal(resp)
	return string(data)
}
