package service

import (
	"time"

	"github.com/pbitips/workload/internal/database"
)

// Catalog limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxItemTypes    = 5
	MaxSearchLength = 200
	MaxNameLength   = 200

	// counterAttempts is the number of optimistic writes tried for a counter increment.
	counterAttempts = 3
)

// A Catalog serves the published items stored in a partitioned table.
// Read operations are defined in catalog_query.go and write operations in catalog_mutation.go.
type Catalog struct {
	db    database.Client
	table string

	// Now returns the current time. It is used to stamp created and updated dates.
	Now func() time.Time
}

// NewCatalog returns a new Catalog backed by the given table.
func NewCatalog(db database.Client, table string) *Catalog {
	return &Catalog{
		db:    db,
		table: table,
		Now:   time.Now,
	}
}

// Table returns the name of the table holding the published items.
func (c *Catalog) Table() string {
	return c.table
}

func (c *Catalog) now() int64 {
	return c.Now().UTC().Unix()
}
