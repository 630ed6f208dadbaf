package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pbitips/workload/internal/model"
	"github.com/pkg/errors"
)

// Supported drivers.
const (
	DriverStorm    = "storm"
	DriverDynamoDB = "dynamodb"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("database: record not found")
	// ErrAlreadyExists is returned when creating a record whose keys are already used.
	ErrAlreadyExists = errors.New("database: record already exists")
	// ErrConcurrentModification is returned when the record's version has changed since it was read.
	ErrConcurrentModification = errors.New("database: record was modified concurrently")
)

type (
	// A Client can interact with a partitioned table store.
	// Every method operates on a single record except scans, which are not transactional.
	Client interface {
		// Init creates the given table if it does not exist.
		Init(ctx context.Context, table string) error
		// Get returns the record for the given keys.
		Get(ctx context.Context, table, partitionKey, rowKey string) (*model.Record, error)
		// ScanByPartition returns all the records of the given partition.
		ScanByPartition(ctx context.Context, table, partitionKey string) ([]*model.Record, error)
		// ScanByFilter returns all the records matching the given filter.
		ScanByFilter(ctx context.Context, table string, filter Filter) ([]*model.Record, error)
		// Create inserts the record. It fails with ErrAlreadyExists if the keys are already used.
		// On success, the record's version is set to 1.
		Create(ctx context.Context, table string, r *model.Record) error
		// Update replaces the record if its stored version equals r.Version.
		// On success, r.Version is incremented.
		Update(ctx context.Context, table string, r *model.Record) error
		// Delete removes the record for the given keys.
		Delete(ctx context.Context, table, partitionKey, rowKey string) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// IsAlreadyExists returns true if err is an already exists error.
		IsAlreadyExists(err error) bool
		// IsConcurrentModification returns true if err is a version mismatch error.
		IsConcurrentModification(err error) bool
	}

	// A Filter restricts a scan.
	Filter struct {
		// PartitionKey restricts the scan to a single partition when not empty.
		PartitionKey string
		// Equal requires each property to be equal to the given value.
		Equal map[string]any
		// Search requires at least one of the properties to contain the text.
		Search Search
	}

	// A Search is a case-sensitive substring match over several properties.
	Search struct {
		Properties []string
		Text       string
	}

	// Options are used to open a Client.
	Options struct {
		Driver string
		// Storm
		Path  string
		Codec string
		// DynamoDB
		Region   string
		Endpoint string
	}
)

// Open returns a new Client for the given options.
func Open(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverStorm:
		codec, err := StormCodec(opts.Codec)
		if err != nil {
			return nil, err
		}
		return StormOpen(opts.Path, codec)
	case DriverDynamoDB:
		return DynamoDBOpen(ctx, opts.Region, opts.Endpoint)
	default:
		return nil, errors.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Match returns true if the record satisfies the filter.
func (f Filter) Match(r *model.Record) bool {
	if f.PartitionKey != "" && r.PartitionKey != f.PartitionKey {
		return false
	}

	for name, expected := range f.Equal {
		if !equal(r.Properties[name], expected) {
			return false
		}
	}

	if f.Search.Text == "" {
		return true
	}
	for _, name := range f.Search.Properties {
		if strings.Contains(r.Properties.String(name), f.Search.Text) {
			return true
		}
	}
	return false
}

// equalNames returns the Equal property names in a stable order.
func (f Filter) equalNames() []string {
	names := make([]string, 0, len(f.Equal))
	for name := range f.Equal {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func equal(actual, expected any) bool {
	if a, ok := model.ToInt64(actual); ok {
		e, ok := model.ToInt64(expected)
		return ok && a == e
	}

	switch e := expected.(type) {
	case bool:
		a, ok := actual.(bool)
		if !ok {
			// A missing boolean property is false.
			return actual == nil && !e
		}
		return a == e
	case string:
		return fmt.Sprint(actual) == e
	default:
		return actual == expected
	}
}

func isCause(err, target error) bool {
	return err != nil && errors.Cause(err) == target
}
