package registry

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/tvmlabs/tvmabi/schema"
)

var ErrNotFound = errors.New("registry: contract not found")

// ContractDocument is the persisted row for one loaded ABI document:
// the raw JSON is kept so the document can be reloaded and re-resolved
// if schema parsing logic changes, while Version/InputIDs/OutputIDs/
// EventIDs are denormalized for id-based lookups without a JSON
// round-trip on the hot path.
type ContractDocument struct {
	bun.BaseModel `bun:"table:contract_documents"`

	Name      string `bun:"name,pk"`
	Version   int    `bun:"version,notnull"`
	RawJSON   []byte `bun:"raw_json,notnull"`
	InputIDs  []int64 `bun:"input_ids,array"`
	OutputIDs []int64 `bun:"output_ids,array"`
	EventIDs  []int64 `bun:"event_ids,array"`
}

// Repository stores and resolves contract ABI documents, cached for
// cacheInvalidation between reloads from Postgres.
type Repository struct {
	pg    *bun.DB
	cache *cache
}

// NewRepository wraps an open Postgres connection.
func NewRepository(db *bun.DB) *Repository {
	return &Repository{pg: db, cache: newCache()}
}

// Put parses raw and stores it under name, overwriting any prior
// document with the same name.
func (r *Repository) Put(ctx context.Context, name string, raw []byte) (*schema.Contract, error) {
	c, err := schema.Load(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: load %q", name)
	}

	doc := &ContractDocument{
		Name:    name,
		Version: c.Version,
		RawJSON: raw,
	}
	for _, fn := range c.Functions {
		doc.InputIDs = append(doc.InputIDs, int64(fn.InputID))
		doc.OutputIDs = append(doc.OutputIDs, int64(fn.OutputID))
	}
	for _, ev := range c.Events {
		doc.EventIDs = append(doc.EventIDs, int64(ev.ID))
	}

	_, err = r.pg.NewInsert().Model(doc).
		On("CONFLICT (name) DO UPDATE").
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: store %q", name)
	}

	r.cache.set(name, c)
	return c, nil
}

// Get resolves a contract by name, consulting the cache before
// Postgres.
func (r *Repository) Get(ctx context.Context, name string) (*schema.Contract, error) {
	if c, ok := r.cache.get(name); ok {
		return c, nil
	}

	var doc ContractDocument
	err := r.pg.NewSelect().Model(&doc).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}

	c, err := schema.Load(doc.RawJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: reload %q", name)
	}
	r.cache.set(name, c)
	return c, nil
}

// Delete removes a contract document.
func (r *Repository) Delete(ctx context.Context, name string) error {
	r.cache.del(name)
	ret, err := r.pg.NewDelete().Model((*ContractDocument)(nil)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := ret.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	return nil
}

// List returns every registered contract name.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	var names []string
	err := r.pg.NewSelect().Model((*ContractDocument)(nil)).Column("name").Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return names, nil
}
