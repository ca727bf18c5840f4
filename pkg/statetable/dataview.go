package statetable

import (
	"sort"
)

// FilterFunc decides whether an entry is visible for the given criteria.
type FilterFunc func(Entry, FilterArgs) bool

// RowCountListener is notified whenever the number of visible rows changes.
type RowCountListener func(previous, current int)

// DataView is the backing store of the table. It owns the full item list and
// derives the visible rows by applying the filter. Mutations made between
// BeginUpdate and EndUpdate are coalesced into a single refresh.
//
// DataView is not safe for concurrent use.
type DataView struct {
	items      []Entry
	rows       []Entry
	filter     FilterFunc
	filterArgs FilterArgs
	sortSpec   SortSpec
	sortCmp    func(a, b Entry) int
	sortAsc    bool
	updating   int
	listeners  []RowCountListener
}

// NewDataView creates an empty view with no filter applied.
func NewDataView() *DataView {
	return &DataView{sortAsc: true}
}

// SetFilter installs the row filter and refreshes.
func (v *DataView) SetFilter(f FilterFunc) {
	v.filter = f
	v.Refresh()
}

// SetFilterArgs replaces the filter criteria. Call Refresh to apply them.
func (v *DataView) SetFilterArgs(args FilterArgs) {
	v.filterArgs = args
}

// FilterArgs returns the current filter criteria.
func (v *DataView) FilterArgs() FilterArgs {
	return v.filterArgs
}

// SortSpec returns the spec of the last applied sort.
func (v *DataView) SortSpec() SortSpec {
	return v.sortSpec
}

// OnRowCountChanged registers a listener for visible row count changes.
func (v *DataView) OnRowCountChanged(l RowCountListener) {
	v.listeners = append(v.listeners, l)
}

// BeginUpdate suspends refreshes until the matching EndUpdate.
func (v *DataView) BeginUpdate() {
	v.updating++
}

// EndUpdate closes a batch and refreshes once the outermost batch ends.
func (v *DataView) EndUpdate() {
	if v.updating > 0 {
		v.updating--
	}
	v.Refresh()
}

// SetItems replaces all items.
func (v *DataView) SetItems(items []Entry) {
	v.items = append(v.items[:0:0], items...)
	v.Refresh()
}

// AddItem appends an item.
func (v *DataView) AddItem(e Entry) {
	v.items = append(v.items, e)
	v.Refresh()
}

// Items returns a copy of every item, visible or not.
func (v *DataView) Items() []Entry {
	return append([]Entry(nil), v.items...)
}

// Len returns the number of visible rows.
func (v *DataView) Len() int {
	return len(v.rows)
}

// ItemCount returns the number of items before filtering.
func (v *DataView) ItemCount() int {
	return len(v.items)
}

// Rows returns a copy of the visible rows in display order.
func (v *DataView) Rows() []Entry {
	return append([]Entry(nil), v.rows...)
}

// Row returns the visible row at index i.
func (v *DataView) Row(i int) (Entry, bool) {
	if i < 0 || i >= len(v.rows) {
		return Entry{}, false
	}
	return v.rows[i], true
}

// Sort orders the items with cmp (ascending semantics) and refreshes. When
// asc is false the order is reversed.
func (v *DataView) Sort(cmp func(a, b Entry) int, asc bool) {
	v.sortCmp = cmp
	v.sortAsc = asc
	v.applySort()
	v.Refresh()
}

// ReSort re-applies the last sort, if any.
func (v *DataView) ReSort() {
	if v.sortCmp == nil {
		return
	}
	v.applySort()
	v.Refresh()
}

func (v *DataView) applySort() {
	cmp, asc := v.sortCmp, v.sortAsc
	sort.SliceStable(v.items, func(i, j int) bool {
		c := cmp(v.items[i], v.items[j])
		if !asc {
			c = -c
		}
		return c < 0
	})
}

// Refresh recomputes the visible rows unless a batch is open.
func (v *DataView) Refresh() {
	if v.updating > 0 {
		return
	}

	previous := len(v.rows)
	rows := make([]Entry, 0, len(v.items))
	for _, item := range v.items {
		if v.filter == nil || v.filter(item, v.filterArgs) {
			rows = append(rows, item)
		}
	}
	v.rows = rows

	if previous != len(rows) {
		for _, l := range v.listeners {
			l(previous, len(rows))
		}
	}
}

// Sort applies spec to the view.
func Sort(spec SortSpec, v *DataView) {
	v.sortSpec = spec
	v.Sort(func(a, b Entry) int {
		return compare(spec, a, b)
	}, spec.SortAsc)
}
