package service

import (
	"sort"
	"strings"

	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/wlerror"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// A SortBy is the field used to order a page.
type SortBy string

// Sortable fields.
const (
	SortByCreatedDate   SortBy = "createdDate"
	SortByUpdatedDate   SortBy = "updatedDate"
	SortByName          SortBy = "name"
	SortByDownloads     SortBy = "downloads"
	SortByFavoriteCount SortBy = "favoriteCount"
)

// A SortOrder is the direction of the ordering.
type SortOrder string

// Sort orders.
const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

var sortFields = []SortBy{SortByCreatedDate, SortByUpdatedDate, SortByName, SortByDownloads, SortByFavoriteCount}

// ParseSortBy parses the given value case-insensitively. An empty value is createdDate.
func ParseSortBy(s string) (SortBy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortByCreatedDate, nil
	}

	for _, f := range sortFields {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	return "", wlerror.Validation("invalid sortBy %q", s)
}

// ParseSortOrder parses the given value case-insensitively. An empty value is desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SortOrderDesc):
		return SortOrderDesc, nil
	case string(SortOrderAsc):
		return SortOrderAsc, nil
	default:
		return "", wlerror.Validation("invalid sortOrder %q", s)
	}
}

// A position locates an item in the total order of a listing.
type position struct {
	Number int64
	Text   string
	Guid   string
}

func positionOf(item *model.PublishedItem, by SortBy) position {
	p := position{Guid: item.PublishedGuid}

	switch by {
	case SortByName:
		p.Text = item.Name
	case SortByUpdatedDate:
		p.Number = item.UpdatedDate
	case SortByDownloads:
		p.Number = item.Downloads
	case SortByFavoriteCount:
		p.Number = item.FavoriteCount
	default:
		p.Number = item.CreatedDate
	}
	return p
}

// An ordering is the total order (sortBy, sortOrder, publishedGuid ascending).
// It is not safe for concurrent use because of the collator.
type ordering struct {
	by       SortBy
	order    SortOrder
	collator *collate.Collator
}

func newOrdering(by SortBy, order SortOrder) *ordering {
	return &ordering{
		by:       by,
		order:    order,
		collator: collate.New(language.Und),
	}
}

func (o *ordering) compare(a, b position) int {
	var r int
	switch o.by {
	case SortByName:
		r = o.collator.CompareString(a.Text, b.Text)
		if r == 0 {
			// Collation equivalence is not identity.
			r = strings.Compare(a.Text, b.Text)
		}
	default:
		switch {
		case a.Number < b.Number:
			r = -1
		case a.Number > b.Number:
			r = 1
		}
	}

	if o.order == SortOrderDesc {
		r = -r
	}
	if r == 0 {
		r = strings.Compare(a.Guid, b.Guid)
	}
	return r
}

func (o *ordering) sort(items []*model.PublishedItem) {
	positions := make(map[*model.PublishedItem]position, len(items))
	for _, item := range items {
		positions[item] = positionOf(item, o.by)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return o.compare(positions[items[i]], positions[items[j]]) < 0
	})
}

// after returns the index of the first sorted item strictly after the given position.
func (o *ordering) after(items []*model.PublishedItem, p position) int {
	return sort.Search(len(items), func(i int) bool {
		return o.compare(positionOf(items[i], o.by), p) > 0
	})
}
