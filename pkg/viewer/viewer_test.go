package viewer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greg-hellings/stateview/pkg/nifi"
	"github.com/greg-hellings/stateview/pkg/revision"
	"github.com/greg-hellings/stateview/pkg/statetable"
)

type fakeService struct {
	states     map[string]*nifi.ComponentState
	getErr     error
	clearErr   error
	clearRev   nifi.Revision
	getCalls   []string
	clearCalls []clearCall
}

type clearCall struct {
	uri string
	rev nifi.Revision
}

func (f *fakeService) GetState(_ context.Context, uri string) (*nifi.ComponentState, error) {
	f.getCalls = append(f.getCalls, uri)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.states[uri], nil
}

func (f *fakeService) ClearState(_ context.Context, uri string, rev nifi.Revision) (*nifi.Revision, error) {
	f.clearCalls = append(f.clearCalls, clearCall{uri: uri, rev: rev})
	if f.clearErr != nil {
		return nil, f.clearErr
	}
	r := f.clearRev
	return &r, nil
}

type recordingDialogs struct{ messages []string }

func (d *recordingDialogs) ShowOkDialog(content string) { d.messages = append(d.messages, content) }

type staticCluster bool

func (c staticCluster) IsClustered(context.Context) bool { return bool(c) }

const (
	uriA = "http://nifi/nifi-api/processors/a"
	uriB = "http://nifi/nifi-api/processors/b"
)

func sampleState() *nifi.ComponentState {
	return &nifi.ComponentState{
		StateDescription: "Tracks listing progress",
		LocalState: &nifi.StateMap{State: []nifi.StateEntry{
			{Key: "k1", Value: "v1", ClusterNodeAddress: "node1"},
		}},
		ClusterState: &nifi.StateMap{State: []nifi.StateEntry{
			{Key: "k2", Value: "v2"},
		}},
	}
}

type harness struct {
	v       *Viewer
	svc     *fakeService
	dialogs *recordingDialogs
	revs    *revision.Store
	errs    []error
}

func newHarness(t *testing.T, clustered bool) *harness {
	t.Helper()
	h := &harness{
		svc: &fakeService{
			states:   map[string]*nifi.ComponentState{uriA: sampleState(), uriB: {}},
			clearRev: nifi.Revision{Version: 5},
		},
		dialogs: &recordingDialogs{},
		revs:    revision.NewStore(),
	}
	v, err := New(context.Background(), Options{
		Service:   h.svc,
		Revisions: h.revs,
		Errors:    ErrorHandlerFunc(func(err error) { h.errs = append(h.errs, err) }),
		Cluster:   staticCluster(clustered),
		Dialogs:   h.dialogs,
	})
	require.NoError(t, err)
	h.v = v
	return h
}

func TestNewRequiresService(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}

func TestNewInitialState(t *testing.T) {
	h := newHarness(t, false)

	assert.False(t, h.v.IsOpen())
	assert.Nil(t, h.v.Component())
	assert.Equal(t, 0, h.v.Table().Displayed())
	assert.Equal(t, 0, h.v.Table().Total())
	assert.Equal(t, FilterPlaceholder, h.v.FilterDisplay())
	assert.Equal(t, "", h.v.FilterText())
	assert.Equal(t, statetable.DefaultSort, h.v.Table().View().SortSpec())
}

func TestColumnsDependOnClusterMode(t *testing.T) {
	standalone := newHarness(t, false)
	assert.Equal(t, []Column{{ID: "key", Name: "Key"}, {ID: "value", Name: "Value"}}, standalone.v.Columns())

	clustered := newHarness(t, true)
	require.Len(t, clustered.v.Columns(), 3)
	assert.Equal(t, "scope", clustered.v.Columns()[2].ID)
}

func TestShowState(t *testing.T) {
	h := newHarness(t, true)

	err := h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "ListS3"}, true)
	require.NoError(t, err)

	assert.Equal(t, []string{uriA}, h.svc.getCalls)
	assert.True(t, h.v.IsOpen())
	assert.Equal(t, "ListS3", h.v.Name())
	assert.Equal(t, "Tracks listing progress", h.v.Description())
	require.NotNil(t, h.v.Component())
	assert.Equal(t, uriA, h.v.Component().URI)
	assert.Equal(t, 2, h.v.Table().Total())
	assert.Equal(t, 2, h.v.Table().Displayed())

	disabled, title := h.v.ClearDisabled()
	assert.False(t, disabled)
	assert.Empty(t, title)
}

func TestShowStateCannotClear(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "ListS3"}, false))

	disabled, title := h.v.ClearDisabled()
	assert.True(t, disabled)
	assert.Equal(t, ClearDisabledTitle, title)

	// disabled clear is a no-op
	require.NoError(t, h.v.Clear(context.Background()))
	assert.Empty(t, h.svc.clearCalls)
	assert.Empty(t, h.dialogs.messages)
	assert.Equal(t, 2, h.v.Table().Total())
}

func TestShowStateFailure(t *testing.T) {
	h := newHarness(t, false)
	h.svc.getErr = &nifi.APIError{Method: "GET", URL: uriA, StatusCode: 403}

	err := h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "ListS3"}, true)
	require.Error(t, err)

	require.Len(t, h.errs, 1)
	assert.False(t, h.v.IsOpen())
	assert.Nil(t, h.v.Component())
	assert.Equal(t, "", h.v.Name())
	assert.Equal(t, 0, h.v.Table().Total())
}

func TestCloseResetsDialog(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "ListS3"}, false))
	h.v.FocusFilter()
	h.v.SetFilterText("k1")
	require.Equal(t, 1, h.v.Table().Displayed())

	h.v.Close()

	assert.False(t, h.v.IsOpen())
	assert.Nil(t, h.v.Component())
	assert.Equal(t, "", h.v.Name())
	assert.Equal(t, "", h.v.Description())
	assert.Equal(t, FilterPlaceholder, h.v.FilterDisplay())
	assert.Equal(t, "", h.v.FilterText())
	assert.Equal(t, 0, h.v.Table().Displayed())
	assert.Equal(t, 0, h.v.Table().Total())

	disabled, title := h.v.ClearDisabled()
	assert.False(t, disabled)
	assert.Empty(t, title)
}

func TestReopenDoesNotReferencePreviousComponent(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))
	h.v.Close()

	// clearing after close must not reach component A
	require.NoError(t, h.v.Clear(context.Background()))
	assert.Empty(t, h.svc.clearCalls)

	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriB, Name: "B"}, true))
	assert.Equal(t, uriB, h.v.Component().URI)
	assert.Equal(t, 0, h.v.Table().Total())
}

func TestClearWithNoStateShowsDialog(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriB, Name: "B"}, true))

	require.NoError(t, h.v.Clear(context.Background()))

	assert.Empty(t, h.svc.clearCalls)
	assert.Equal(t, []string{NoStateMessage}, h.dialogs.messages)
}

func TestClearWhenFilterHidesAllRowsShowsDialog(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))
	h.v.SetFilterText("does-not-match")

	require.NoError(t, h.v.Clear(context.Background()))
	assert.Empty(t, h.svc.clearCalls)
	assert.Equal(t, []string{NoStateMessage}, h.dialogs.messages)
}

func TestClearSuccess(t *testing.T) {
	h := newHarness(t, false)
	h.revs.SetRevision(nifi.Revision{Version: 4})
	clientID := h.revs.GetRevision().ClientID

	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))
	require.NoError(t, h.v.Clear(context.Background()))

	require.Len(t, h.svc.clearCalls, 1)
	assert.Equal(t, uriA, h.svc.clearCalls[0].uri)
	assert.Equal(t, nifi.Revision{Version: 4, ClientID: clientID}, h.svc.clearCalls[0].rev)

	assert.Equal(t, int64(5), h.revs.GetRevision().Version)
	assert.Equal(t, clientID, h.revs.GetRevision().ClientID)
	assert.Equal(t, 0, h.v.Table().Total())
	assert.Equal(t, 0, h.v.Table().Displayed())
	assert.Len(t, h.svc.getCalls, 1, "a successful clear does not re-fetch")
	assert.True(t, h.v.IsOpen())
	assert.False(t, h.v.Clearing())
}

func TestClearFailureKeepsTable(t *testing.T) {
	h := newHarness(t, false)
	h.svc.clearErr = &nifi.APIError{Method: "POST", URL: uriA, StatusCode: 409, Body: "stale revision"}

	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))
	err := h.v.Clear(context.Background())
	require.Error(t, err)
	assert.True(t, nifi.IsConflict(err))

	require.Len(t, h.errs, 1)
	assert.Equal(t, 2, h.v.Table().Total())
	assert.Equal(t, int64(0), h.revs.GetRevision().Version)
	assert.False(t, h.v.Clearing())
}

func TestClearInFlight(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))

	req, err := h.v.PrepareClear()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.True(t, h.v.Clearing())

	_, err = h.v.PrepareClear()
	assert.True(t, errors.Is(err, ErrClearInFlight))

	rev, err := req.Do(context.Background())
	h.v.FinishClear(req, rev, err)
	assert.False(t, h.v.Clearing())
	assert.Len(t, h.svc.clearCalls, 1)
}

func TestCloseDuringClearDropsResult(t *testing.T) {
	h := newHarness(t, false)
	h.svc.states[uriB] = &nifi.ComponentState{
		LocalState: &nifi.StateMap{State: []nifi.StateEntry{{Key: "kb", Value: "vb"}}},
	}
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))

	reqA, err := h.v.PrepareClear()
	require.NoError(t, err)
	require.NotNil(t, reqA)

	h.v.Close()
	assert.False(t, h.v.Clearing())
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriB, Name: "B"}, true))

	// B can be cleared while A's request is still outstanding
	reqB, err := h.v.PrepareClear()
	require.NoError(t, err)
	require.NotNil(t, reqB)
	assert.Equal(t, uriB, reqB.URI)

	// A's late answer neither empties B nor ends B's pending clear
	revA, err := reqA.Do(context.Background())
	h.v.FinishClear(reqA, revA, err)
	assert.Equal(t, uriB, h.v.Component().URI)
	assert.Equal(t, 1, h.v.Table().Total())
	assert.True(t, h.v.Clearing())
	assert.Equal(t, int64(5), h.revs.GetRevision().Version)

	revB, err := reqB.Do(context.Background())
	h.v.FinishClear(reqB, revB, err)
	assert.Equal(t, 0, h.v.Table().Total())
	assert.False(t, h.v.Clearing())
}

func TestStaleClearFailureIsNotReported(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))

	req, err := h.v.PrepareClear()
	require.NoError(t, err)
	h.v.Close()

	h.v.FinishClear(req, nil, errors.New("boom"))
	assert.Empty(t, h.errs)
	assert.False(t, h.v.IsOpen())
}

func TestFilterPlaceholderSemantics(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))

	// placeholder is never used as a pattern
	h.v.ApplyFilter()
	assert.Equal(t, 2, h.v.Table().Displayed())

	h.v.FocusFilter()
	assert.Equal(t, "", h.v.FilterDisplay())
	h.v.BlurFilter()
	assert.Equal(t, FilterPlaceholder, h.v.FilterDisplay())

	h.v.FocusFilter()
	h.v.SetFilterText("V2")
	h.v.BlurFilter()
	assert.Equal(t, "V2", h.v.FilterDisplay())
	assert.Equal(t, 1, h.v.Table().Displayed())
	assert.Equal(t, 2, h.v.Table().Total())
}

func TestSortBy(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.v.ShowState(context.Background(), nifi.Component{URI: uriA, Name: "A"}, true))

	h.v.SortBy(statetable.ColumnKey, false)
	rows := h.v.Table().Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "k2", rows[0].Key)

	h.v.SortBy(statetable.ColumnScope, true)
	rows = h.v.Table().Rows()
	assert.Equal(t, statetable.ClusterScope, rows[0].ScopeString())
}
