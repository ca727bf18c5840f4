// Package report captures a point-in-time snapshot of the component state
// dialog so it can be rendered outside the interactive viewer.
package report

import (
	"time"

	"github.com/greg-hellings/stateview/pkg/statetable"
	"github.com/greg-hellings/stateview/pkg/viewer"
)

// Report is a snapshot of the visible state of one component.
type Report struct {
	Name          string             `json:"name"`
	URI           string             `json:"uri"`
	Description   string             `json:"stateDescription,omitempty"`
	Columns       []string           `json:"columns"`
	Filter        string             `json:"filter,omitempty"`
	SortColumn    string             `json:"sortColumn"`
	SortAsc       bool               `json:"sortAsc"`
	Entries       []statetable.Entry `json:"entries"`
	Displayed     int                `json:"displayed"`
	Total         int                `json:"total"`
	ClearDisabled string             `json:"clearDisabled,omitempty"`
	GeneratedAt   time.Time          `json:"generatedAt"`
}

// FromViewer snapshots the open dialog of v.
func FromViewer(v *viewer.Viewer) *Report {
	table := v.Table()
	spec := table.View().SortSpec()

	rpt := &Report{
		Name:        v.Name(),
		Description: v.Description(),
		Filter:      v.FilterText(),
		SortColumn:  spec.ColumnID,
		SortAsc:     spec.SortAsc,
		Entries:     table.Rows(),
		Displayed:   table.Displayed(),
		Total:       table.Total(),
		GeneratedAt: time.Now().UTC(),
	}
	if c := v.Component(); c != nil {
		rpt.URI = c.URI
	}
	for _, col := range v.Columns() {
		rpt.Columns = append(rpt.Columns, col.ID)
	}
	if disabled, title := v.ClearDisabled(); disabled {
		rpt.ClearDisabled = title
	}
	return rpt
}

// HasScope reports whether the scope column is part of the report.
func (r *Report) HasScope() bool {
	for _, c := range r.Columns {
		if c == statetable.ColumnScope {
			return true
		}
	}
	return false
}
