// Package viewer implements the component state dialog: it owns the state
// table, the component the dialog is bound to, the filter field and the clear
// action, and coordinates them with the remote state service.
//
// A Viewer is owned by a single goroutine. Network work is split from state
// changes so that front-ends running requests in the background (see
// FetchState and ClearRequest.Do) apply results on the owning goroutine.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/greg-hellings/stateview/pkg/nifi"
	"github.com/greg-hellings/stateview/pkg/revision"
	"github.com/greg-hellings/stateview/pkg/statetable"
)

const (
	// FilterPlaceholder is shown in the filter field while it is empty and unfocused.
	FilterPlaceholder = "Filter"

	// ClearDisabledTitle explains why the clear action is unavailable.
	ClearDisabledTitle = "Component state can only be cleared when the component is not actively running"

	// NoStateMessage is shown when clearing a component without state.
	NoStateMessage = "This component has no state to clear."
)

var (
	// ErrClearInFlight is returned when a clear is requested while another is pending.
	ErrClearInFlight = errors.New("a clear request is already in progress")
	// ErrNotOpen is returned for actions that need a bound component.
	ErrNotOpen = errors.New("component state dialog is not open")
)

// ErrorHandler presents failed requests to the user.
type ErrorHandler interface {
	HandleError(err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err error)

// HandleError calls f(err).
func (f ErrorHandlerFunc) HandleError(err error) { f(err) }

// ClusterQuery reports whether the remote instance is clustered.
type ClusterQuery interface {
	IsClustered(ctx context.Context) bool
}

// Dialogs shows informational messages.
type Dialogs interface {
	ShowOkDialog(content string)
}

// Column describes a grid column.
type Column struct {
	ID   string
	Name string
}

// Options wires a Viewer to its collaborators. Only Service is required.
type Options struct {
	Service   nifi.StateService
	Revisions revision.Provider
	Errors    ErrorHandler
	Cluster   ClusterQuery
	Dialogs   Dialogs
}

// Viewer is the component state dialog controller.
type Viewer struct {
	service   nifi.StateService
	revisions revision.Provider
	errs      ErrorHandler
	dialogs   Dialogs

	table   *statetable.Table
	columns []Column

	open        bool
	name        string
	description string
	component   *nifi.Component

	filterText        string
	filterPlaceholder bool

	clearDisabled bool
	clearTitle    string
	clearing      bool

	// generation changes on every open and close; clear results carrying an
	// older value belong to a previous binding.
	generation uint64
}

// New initializes the dialog once: columns, filter, default sort and zeroed
// counters. The scope column is only added when the instance is clustered.
func New(ctx context.Context, opts Options) (*Viewer, error) {
	if opts.Service == nil {
		return nil, errors.New("state service is required")
	}

	v := &Viewer{
		service:           opts.Service,
		revisions:         opts.Revisions,
		errs:              opts.Errors,
		dialogs:           opts.Dialogs,
		table:             statetable.NewTable(),
		filterPlaceholder: true,
		columns: []Column{
			{ID: statetable.ColumnKey, Name: "Key"},
			{ID: statetable.ColumnValue, Name: "Value"},
		},
	}
	if v.revisions == nil {
		v.revisions = revision.NewStore()
	}
	if v.errs == nil {
		v.errs = ErrorHandlerFunc(func(err error) {
			slog.Error("Component state request failed", "error", err)
		})
	}
	if v.dialogs == nil {
		v.dialogs = logDialogs{}
	}
	if opts.Cluster != nil && opts.Cluster.IsClustered(ctx) {
		v.columns = append(v.columns, Column{ID: statetable.ColumnScope, Name: "Scope"})
	}

	return v, nil
}

type logDialogs struct{}

func (logDialogs) ShowOkDialog(content string) {
	slog.Info(content)
}

// Table returns the state table.
func (v *Viewer) Table() *statetable.Table { return v.table }

// Columns returns the grid columns.
func (v *Viewer) Columns() []Column { return append([]Column(nil), v.columns...) }

// IsOpen reports whether the dialog is showing.
func (v *Viewer) IsOpen() bool { return v.open }

// Name returns the displayed component name.
func (v *Viewer) Name() string { return v.name }

// Description returns the displayed state description.
func (v *Viewer) Description() string { return v.description }

// Component returns the bound component, or nil when the dialog is closed.
func (v *Viewer) Component() *nifi.Component {
	if v.component == nil {
		return nil
	}
	c := *v.component
	return &c
}

// ClearDisabled reports whether the clear action is disabled and why.
func (v *Viewer) ClearDisabled() (bool, string) { return v.clearDisabled, v.clearTitle }

// Clearing reports whether a clear request is pending.
func (v *Viewer) Clearing() bool { return v.clearing }

// FetchState performs the request behind ShowState without touching the dialog.
func (v *Viewer) FetchState(ctx context.Context, component nifi.Component) (*nifi.ComponentState, error) {
	return v.service.GetState(ctx, component.URI)
}

// ShowState fetches the state of component and opens the dialog with it. On
// failure the error handler is invoked and the dialog stays closed.
func (v *Viewer) ShowState(ctx context.Context, component nifi.Component, canClear bool) error {
	state, err := v.FetchState(ctx, component)
	if err != nil {
		v.errs.HandleError(err)
		return err
	}
	v.Opened(component, canClear, state)
	return nil
}

// Opened populates and opens the dialog with state fetched for component.
func (v *Viewer) Opened(component nifi.Component, canClear bool, state *nifi.ComponentState) {
	if state == nil {
		state = &nifi.ComponentState{}
	}

	v.table.LoadComponentState(state.LocalState, state.ClusterState)

	v.name = component.Name
	v.description = state.StateDescription

	c := component
	v.component = &c

	v.open = true
	v.generation++

	if !canClear {
		v.clearDisabled = true
		v.clearTitle = ClearDisabledTitle
	}

	slog.Debug("Component state dialog opened",
		"component", component.Name,
		"uri", component.URI,
		"entries", v.table.Total())
}

// Close resets the dialog and unbinds the component.
func (v *Viewer) Close() {
	v.name = ""
	v.description = ""

	v.filterText = ""
	v.filterPlaceholder = true
	v.table.ApplyFilter("")

	v.clearDisabled = false
	v.clearTitle = ""
	v.clearing = false

	v.table.ClearTable()

	v.component = nil
	v.open = false
	v.generation++
}

// FocusFilter clears the placeholder when the filter field gains focus.
func (v *Viewer) FocusFilter() {
	if v.filterPlaceholder {
		v.filterPlaceholder = false
		v.filterText = ""
	}
}

// BlurFilter restores the placeholder when the field is left empty.
func (v *Viewer) BlurFilter() {
	if v.filterText == "" {
		v.filterPlaceholder = true
	}
}

// SetFilterText records the filter field contents and re-applies the filter.
func (v *Viewer) SetFilterText(text string) {
	v.filterPlaceholder = false
	v.filterText = text
	v.ApplyFilter()
}

// FilterText returns the effective search string, never the placeholder.
func (v *Viewer) FilterText() string {
	if v.filterPlaceholder {
		return ""
	}
	return v.filterText
}

// FilterDisplay returns what the filter field shows.
func (v *Viewer) FilterDisplay() string {
	if v.filterPlaceholder {
		return FilterPlaceholder
	}
	return v.filterText
}

// ApplyFilter re-filters the table with the current filter text.
func (v *Viewer) ApplyFilter() {
	v.table.ApplyFilter(v.FilterText())
}

// SortBy orders the table by column.
func (v *Viewer) SortBy(columnID string, asc bool) {
	v.table.SortBy(statetable.SortSpec{ColumnID: columnID, SortAsc: asc})
}

// ClearRequest is a prepared clear-state call.
type ClearRequest struct {
	service    nifi.StateService
	generation uint64
	URI        string
	Revision   nifi.Revision
}

// Do sends the clear request.
func (r *ClearRequest) Do(ctx context.Context) (*nifi.Revision, error) {
	return r.service.ClearState(ctx, r.URI, r.Revision)
}

// PrepareClear runs the checks that precede a clear. It returns a nil request
// and nil error when nothing should be sent: the action is disabled, or there
// is no state (in which case the no-state dialog is shown).
func (v *Viewer) PrepareClear() (*ClearRequest, error) {
	if v.clearDisabled {
		return nil, nil
	}
	if v.clearing {
		return nil, ErrClearInFlight
	}

	if v.table.Len() == 0 {
		v.dialogs.ShowOkDialog(NoStateMessage)
		return nil, nil
	}
	if v.component == nil {
		return nil, ErrNotOpen
	}

	v.clearing = true
	return &ClearRequest{
		service:    v.service,
		generation: v.generation,
		URI:        v.component.URI,
		Revision:   v.revisions.GetRevision(),
	}, nil
}

// FinishClear applies the outcome of req. Outcomes of requests issued before
// the dialog was closed or rebound are dropped; only a returned revision is
// still recorded.
func (v *Viewer) FinishClear(req *ClearRequest, rev *nifi.Revision, err error) {
	if req == nil || req.generation != v.generation {
		if err == nil && rev != nil {
			v.revisions.SetRevision(*rev)
		}
		slog.Debug("Dropping result of a clear request for a previous component", "uri", uriOf(req), "error", err)
		return
	}

	v.clearing = false

	if err != nil {
		v.errs.HandleError(err)
		return
	}

	if rev != nil {
		v.revisions.SetRevision(*rev)
	}

	v.table.ClearTable()
	v.table.LoadComponentState(nil, nil)

	slog.Info("Component state cleared", "component", v.name)
}

// Clear clears the bound component's state and empties the table.
func (v *Viewer) Clear(ctx context.Context) error {
	req, err := v.PrepareClear()
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}

	rev, err := req.Do(ctx)
	v.FinishClear(req, rev, err)
	if err != nil {
		return fmt.Errorf("clear %s: %w", req.URI, err)
	}
	return nil
}

func uriOf(req *ClearRequest) string {
	if req == nil {
		return ""
	}
	return req.URI
}
