package service

import (
	"context"
	"unicode/utf8"

	"github.com/pbitips/workload/internal/database"
	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/policy"
	"github.com/pbitips/workload/internal/wlerror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type (
	// A ListFilter restricts a listing.
	ListFilter struct {
		// ItemTypes restricts the listing to the given partitions. Empty means all of them.
		ItemTypes []model.ItemType
		// Search is a case-sensitive substring of the name or the owner id.
		Search string
		// IncludeRestricted lists restricted items. It is only honoured for admins.
		IncludeRestricted bool
	}

	// ListParams are the parameters of a paged listing.
	ListParams struct {
		Filter            ListFilter
		SortBy            SortBy
		SortOrder         SortOrder
		PageSize          int
		ContinuationToken string
	}

	// A Page is a window of a listing.
	Page struct {
		Items             []*model.PublishedItem `json:"items"`
		PageSize          int                    `json:"pageSize"`
		ContinuationToken string                 `json:"continuationToken,omitempty"`
	}
)

// NewListParams returns the default listing parameters.
func NewListParams() ListParams {
	return ListParams{
		SortBy:    SortByCreatedDate,
		SortOrder: SortOrderDesc,
		PageSize:  DefaultPageSize,
	}
}

// ClampPageSize bounds the page size to [1, MaxPageSize].
func ClampPageSize(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// Validate checks the filter domain.
func (f ListFilter) Validate() error {
	if len(f.ItemTypes) > MaxItemTypes {
		return wlerror.Validation("at most %d item types can be requested", MaxItemTypes)
	}
	for _, t := range f.ItemTypes {
		if indexOf(t) == len(model.ItemTypes) {
			return wlerror.Validation("invalid item type %q", t)
		}
	}
	if utf8.RuneCountInString(f.Search) > MaxSearchLength {
		return wlerror.Validation("search must be at most %d characters", MaxSearchLength)
	}
	return nil
}

// ListPage returns one page of the catalog visible to the caller.
// Chaining the returned continuation tokens visits every matching item exactly once
// as long as the catalog is not modified in between.
func (c *Catalog) ListPage(ctx context.Context, caller model.Principal, params ListParams) (*Page, error) {
	if err := params.Filter.Validate(); err != nil {
		return nil, err
	}

	by, err := ParseSortBy(string(params.SortBy))
	if err != nil {
		return nil, err
	}
	order, err := ParseSortOrder(string(params.SortOrder))
	if err != nil {
		return nil, err
	}
	size := ClampPageSize(params.PageSize)

	includeRestricted := params.Filter.IncludeRestricted && policy.CanModerate(caller)
	fp := fingerprint(params.Filter, includeRestricted)
	o := newOrdering(by, order)

	var from *cursor
	if params.ContinuationToken != "" {
		cur, err := decodeCursor(params.ContinuationToken, by, order, fp)
		if err != nil {
			return nil, err
		}
		from = &cur
	}

	items, err := c.scan(ctx, params.Filter, includeRestricted)
	if err != nil {
		return nil, err
	}
	o.sort(items)

	start := 0
	if from != nil {
		start = o.after(items, from.position())
	}

	end := start + size
	if end > len(items) {
		end = len(items)
	}

	page := &Page{
		Items:    items[start:end],
		PageSize: size,
	}
	if end < len(items) {
		page.ContinuationToken = newCursor(by, order, fp, items[end-1]).encode()
	}

	logrus.WithFields(logrus.Fields{
		"sort_by":    by,
		"sort_order": order,
		"page_size":  size,
		"matches":    len(items),
		"returned":   len(page.Items),
	}).Debug("listed published items")

	return page, nil
}

// ListAll returns every item matching the filter, without pagination nor ordering guarantee.
// It is reserved to admins.
func (c *Catalog) ListAll(ctx context.Context, caller model.Principal, filter ListFilter) ([]*model.PublishedItem, error) {
	if !policy.CanListAll(caller) {
		return nil, wlerror.Forbidden("only admins can list the whole catalog")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	return c.scan(ctx, filter, filter.IncludeRestricted)
}

// Get returns the item for the given type and guid, restricted or not.
func (c *Catalog) Get(ctx context.Context, t model.ItemType, guid string) (*model.PublishedItem, error) {
	r, err := c.db.Get(ctx, c.table, string(t), guid)
	if err != nil {
		if c.db.IsNotFound(err) {
			return nil, wlerror.NotFound("published item %s/%s not found", t, guid)
		}
		return nil, wlerror.Internal(err, "could not get published item")
	}

	var item model.PublishedItem
	if err = item.FromRecord(r); err != nil {
		return nil, wlerror.Internal(err, "could not decode published item")
	}
	return &item, nil
}

// scan reads the requested partitions concurrently.
func (c *Catalog) scan(ctx context.Context, filter ListFilter, includeRestricted bool) ([]*model.PublishedItem, error) {
	types := partitions(filter.ItemTypes)
	results := make([][]*model.Record, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			f := database.Filter{PartitionKey: string(t)}
			if !includeRestricted {
				f.Equal = map[string]any{model.PropertyRestricted: false}
			}
			if filter.Search != "" {
				f.Search = database.Search{
					Properties: []string{model.PropertyName, model.PropertyOwnerID},
					Text:       filter.Search,
				}
			}

			records, err := c.db.ScanByFilter(gctx, c.table, f)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wlerror.Internal(err, "could not scan published items")
	}

	items := make([]*model.PublishedItem, 0)
	for _, records := range results {
		for _, r := range records {
			var item model.PublishedItem
			if err := item.FromRecord(r); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"partition_key": r.PartitionKey,
					"row_key":       r.RowKey,
				}).Warn("skipping undecodable published item")
				continue
			}
			items = append(items, &item)
		}
	}
	return items, nil
}

// partitions returns the distinct requested item types in scan order.
func partitions(types []model.ItemType) []model.ItemType {
	if len(types) == 0 {
		return model.ItemTypes
	}

	set := map[model.ItemType]bool{}
	for _, t := range types {
		set[t] = true
	}

	result := make([]model.ItemType, 0, len(set))
	for _, t := range model.ItemTypes {
		if set[t] {
			result = append(result, t)
		}
	}
	return result
}

func indexOf(t model.ItemType) int {
	for i, it := range model.ItemTypes {
		if it == t {
			return i
		}
	}
	return len(model.ItemTypes)
}
