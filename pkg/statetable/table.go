package statetable

import (
	"github.com/greg-hellings/stateview/pkg/nifi"
)

// Table couples a DataView with the displayed and total entry counters.
type Table struct {
	view      *DataView
	matcher   Matcher
	displayed int
	total     int
}

// NewTable creates an empty table with the state filter installed and the
// default sort applied.
func NewTable() *Table {
	t := &Table{view: NewDataView()}
	t.view.SetFilterArgs(FilterArgs{SearchString: ""})
	t.view.SetFilter(t.matcher.Filter)
	Sort(DefaultSort, t.view)
	t.view.OnRowCountChanged(func(_, current int) {
		t.displayed = current
	})
	return t
}

// View exposes the backing data view.
func (t *Table) View() *DataView {
	return t.view
}

// Displayed returns the number of entries passing the current filter.
func (t *Table) Displayed() int {
	return t.displayed
}

// Total returns the number of entries loaded before filtering.
func (t *Table) Total() int {
	return t.total
}

// Len returns the number of visible rows.
func (t *Table) Len() int {
	return t.view.Len()
}

// Rows returns the visible rows in display order.
func (t *Table) Rows() []Entry {
	return t.view.Rows()
}

// ApplyFilter sets the search string and refreshes the visible rows.
func (t *Table) ApplyFilter(search string) {
	t.view.SetFilterArgs(FilterArgs{SearchString: search})
	t.view.Refresh()
}

// SortBy re-orders the rows by spec.
func (t *Table) SortBy(spec SortSpec) {
	Sort(spec, t.view)
}

// ClearTable removes every entry and zeroes both counters.
func (t *Table) ClearTable() {
	t.view.SetItems(nil)
	t.displayed = 0
	t.total = 0
}

// LoadComponentState replaces the contents of the table with the local and
// cluster state maps. Local entries come first and are scoped to their node
// address; cluster entries are scoped to ClusterScope. Either map may be nil.
func (t *Table) LoadComponentState(local, cluster *nifi.StateMap) {
	count := 0

	t.view.BeginUpdate()
	t.view.SetItems(nil)

	if local != nil {
		for _, se := range local.State {
			var scope *string
			if se.ClusterNodeAddress != "" {
				addr := se.ClusterNodeAddress
				scope = &addr
			}
			t.view.AddItem(Entry{ID: count, Key: se.Key, Value: se.Value, Scope: scope})
			count++
		}
	}

	if cluster != nil {
		for _, se := range cluster.State {
			scope := ClusterScope
			t.view.AddItem(Entry{ID: count, Key: se.Key, Value: se.Value, Scope: &scope})
			count++
		}
	}

	t.view.EndUpdate()
	t.view.ReSort()

	t.displayed = t.view.Len()
	t.total = count
}
