package database

import (
	"context"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec"
	"github.com/asdine/storm/v3/q"
	"github.com/pbitips/workload/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// stormRecord is the bucket entry of a record.
// Each table is a Storm node and records are keyed by their partition and row keys.
type stormRecord struct {
	ID           string           `json:"id"            msgpack:"id"            storm:"id"`
	PartitionKey string           `json:"partition_key" msgpack:"partition_key" storm:"index"`
	RowKey       string           `json:"row_key"       msgpack:"row_key"`
	Version      int64            `json:"version"       msgpack:"version"`
	Properties   model.Properties `json:"properties"    msgpack:"properties"`
}

func stormID(partitionKey, rowKey string) string {
	return partitionKey + "/" + rowKey
}

func newStormRecord(r *model.Record) *stormRecord {
	return &stormRecord{
		ID:           stormID(r.PartitionKey, r.RowKey),
		PartitionKey: r.PartitionKey,
		RowKey:       r.RowKey,
		Version:      r.Version,
		Properties:   r.Properties,
	}
}

func (r *stormRecord) record() *model.Record {
	properties := r.Properties
	if properties == nil {
		properties = model.Properties{}
	}

	return &model.Record{
		PartitionKey: r.PartitionKey,
		RowKey:       r.RowKey,
		Version:      r.Version,
		Properties:   properties,
	}
}

// filterMatcher applies a Filter inside a Storm query.
type filterMatcher struct {
	filter Filter
}

func (m filterMatcher) Match(v any) (bool, error) {
	switch r := v.(type) {
	case *stormRecord:
		return m.filter.Match(r.record()), nil
	case stormRecord:
		return m.filter.Match(r.record()), nil
	default:
		return false, errors.Errorf("unexpected value %T", v)
	}
}

// StormInit initializes the given tables of a Storm database.
func StormInit(database string, codec codec.MarshalUnmarshaler, tables ...string) error {
	c, err := StormOpen(database, codec)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, table := range tables {
		if err := c.Init(context.Background(), table); err != nil {
			return err
		}
	}
	return nil
}

// StormReIndex reindexes the given tables of a Storm database.
func StormReIndex(database string, codec codec.MarshalUnmarshaler, tables ...string) error {
	db, err := storm.Open(database, storm.Codec(codec))
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, table := range tables {
		if err := db.From(table).ReIndex(&stormRecord{}); err != nil {
			return errors.Wrapf(err, "could not ReIndex %s", table)
		}
	}
	return nil
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string, codec codec.MarshalUnmarshaler) (Client, error) {
	db, err := storm.Open(database, storm.Codec(codec))
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Init(_ context.Context, table string) error {
	err := c.db.From(table).Init(&stormRecord{})
	return errors.Wrapf(err, "could not init %s index", table)
}

func (c *strm) Get(ctx context.Context, table, partitionKey, rowKey string) (*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var r stormRecord
	if err := c.db.From(table).One("ID", stormID(partitionKey, rowKey), &r); err != nil {
		return nil, c.wrap(err, "could not find record")
	}
	return r.record(), nil
}

func (c *strm) ScanByPartition(ctx context.Context, table, partitionKey string) ([]*model.Record, error) {
	return c.ScanByFilter(ctx, table, Filter{PartitionKey: partitionKey})
}

func (c *strm) ScanByFilter(ctx context.Context, table string, filter Filter) ([]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := []q.Matcher{}
	if filter.PartitionKey != "" {
		query = append(query, q.Eq("PartitionKey", filter.PartitionKey))
	}
	if len(filter.Equal) > 0 || filter.Search.Text != "" {
		query = append(query, filterMatcher{filter: filter})
	}

	entries := make([]*stormRecord, 0)
	err := c.db.From(table).Select(query...).Find(&entries)
	if err != nil && errors.Cause(err) != storm.ErrNotFound {
		return nil, errors.Wrap(err, "could not scan records")
	}

	records := make([]*model.Record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, entry.record())
	}
	return records, nil
}

func (c *strm) Create(ctx context.Context, table string, r *model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := c.db.From(table).Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // nolint:errcheck

	entry := newStormRecord(r)
	entry.Version = 1

	var existing stormRecord
	err = tx.One("ID", entry.ID, &existing)
	switch {
	case err == nil:
		return errors.Wrapf(ErrAlreadyExists, "%s", entry.ID)
	case errors.Cause(err) != storm.ErrNotFound:
		return errors.Wrap(err, "could not check record")
	}

	if err = tx.Save(entry); err != nil {
		return errors.Wrap(err, "could not save record")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit record")
	}

	r.Version = entry.Version
	return nil
}

func (c *strm) Update(ctx context.Context, table string, r *model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := c.db.From(table).Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // nolint:errcheck

	entry := newStormRecord(r)

	var existing stormRecord
	if err = tx.One("ID", entry.ID, &existing); err != nil {
		return c.wrap(err, "could not find record")
	}
	if existing.Version != r.Version {
		return errors.Wrapf(ErrConcurrentModification, "%s: expected version %d, got %d", entry.ID, r.Version, existing.Version)
	}

	entry.Version = existing.Version + 1
	if err = tx.Save(entry); err != nil {
		return errors.Wrap(err, "could not save record")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit record")
	}

	r.Version = entry.Version
	return nil
}

func (c *strm) Delete(ctx context.Context, table, partitionKey, rowKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := c.db.From(table).Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // nolint:errcheck

	var existing stormRecord
	if err = tx.One("ID", stormID(partitionKey, rowKey), &existing); err != nil {
		return c.wrap(err, "could not find record")
	}
	if err = tx.DeleteStruct(&existing); err != nil {
		return errors.Wrap(err, "could not delete record")
	}
	return errors.Wrap(tx.Commit(), "could not commit deletion")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return isCause(err, ErrNotFound)
}

func (c *strm) IsAlreadyExists(err error) bool {
	return isCause(err, ErrAlreadyExists)
}

func (c *strm) IsConcurrentModification(err error) bool {
	return isCause(err, ErrConcurrentModification)
}

// wrap translates Storm errors to the package's sentinel errors.
func (c *strm) wrap(err error, message string) error {
	if errors.Cause(err) == storm.ErrNotFound {
		return errors.Wrap(ErrNotFound, message)
	}
	return errors.Wrap(err, message)
}
