package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greg-hellings/stateview/pkg/nifi"
	"github.com/greg-hellings/stateview/pkg/viewer"
)

type fakeService struct {
	state      *nifi.ComponentState
	getErr     error
	clearCalls int
}

func (f *fakeService) GetState(context.Context, string) (*nifi.ComponentState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.state, nil
}

func (f *fakeService) ClearState(context.Context, string, nifi.Revision) (*nifi.Revision, error) {
	f.clearCalls++
	return &nifi.Revision{Version: 1}, nil
}

// waitingService blocks until the request context ends.
type waitingService struct{}

func (waitingService) GetState(ctx context.Context, _ string) (*nifi.ComponentState, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (waitingService) ClearState(ctx context.Context, _ string, _ nifi.Revision) (*nifi.Revision, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var testComponent = nifi.Component{URI: "http://nifi/nifi-api/processors/a", Name: "ListS3"}

func newTestModel(t *testing.T, svc *fakeService, canClear bool) (Model, *viewer.Viewer) {
	t.Helper()
	notices := NewNotices()
	v, err := viewer.New(context.Background(), viewer.Options{
		Service: svc,
		Errors:  notices,
		Dialogs: notices,
	})
	require.NoError(t, err)
	return New(context.Background(), v, notices, testComponent, canClear), v
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m, _ = update(t, m, m.Init()())
	return m
}

func sampleState() *nifi.ComponentState {
	return &nifi.ComponentState{
		StateDescription: "Stores listing progress",
		LocalState: &nifi.StateMap{State: []nifi.StateEntry{
			{Key: "k1", Value: "v1"},
			{Key: "k2", Value: "v2"},
		}},
	}
}

func TestModelLoadsState(t *testing.T) {
	m, v := newTestModel(t, &fakeService{state: sampleState()}, true)
	assert.Contains(t, m.View(), "Loading state for ListS3")

	m = loaded(t, m)

	assert.True(t, v.IsOpen())
	out := m.View()
	assert.Contains(t, out, "ListS3")
	assert.Contains(t, out, "Stores listing progress")
	assert.Contains(t, out, "Displaying 2 of 2")
	assert.Contains(t, out, "k1")
}

func TestModelFilterTyping(t *testing.T) {
	m, v := newTestModel(t, &fakeService{state: sampleState()}, true)
	m = loaded(t, m)

	m, _ = update(t, m, runes("/"))
	require.True(t, m.filter.Focused())

	m, _ = update(t, m, runes("2"))
	assert.Equal(t, "2", v.FilterText())
	assert.Equal(t, 1, v.Table().Displayed())
	assert.Equal(t, 2, v.Table().Total())
	assert.Contains(t, m.View(), "Displaying 1 of 2")

	// keys go to the filter while it is focused
	m, cmd := update(t, m, runes("q"))
	if cmd != nil {
		_, isQuit := cmd().(tea.QuitMsg)
		assert.False(t, isQuit)
	}
	assert.Equal(t, "2q", v.FilterText())
	assert.Equal(t, 0, v.Table().Displayed())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.filter.Focused())
	assert.Equal(t, "2q", v.FilterDisplay())
}

func TestModelClearWithNoVisibleRowsShowsNotice(t *testing.T) {
	svc := &fakeService{state: &nifi.ComponentState{}}
	m, _ := newTestModel(t, svc, true)
	m = loaded(t, m)

	m, cmd := update(t, m, runes("c"))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, svc.clearCalls)
	assert.Contains(t, m.View(), viewer.NoStateMessage)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotContains(t, m.View(), viewer.NoStateMessage)
}

func TestModelClear(t *testing.T) {
	svc := &fakeService{state: sampleState()}
	m, v := newTestModel(t, svc, true)
	m = loaded(t, m)

	m, cmd := update(t, m, runes("c"))
	require.NotNil(t, cmd)
	assert.True(t, v.Clearing())

	// a second press while pending does not issue another request
	m, cmd2 := update(t, m, runes("c"))
	assert.Nil(t, cmd2)
	assert.Contains(t, m.View(), viewer.ErrClearInFlight.Error())

	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, svc.clearCalls)
	assert.Equal(t, 0, v.Table().Total())
	assert.Contains(t, m.View(), "Component state cleared")
}

func TestModelClearDisabled(t *testing.T) {
	svc := &fakeService{state: sampleState()}
	m, _ := newTestModel(t, svc, false)
	m = loaded(t, m)

	m, cmd := update(t, m, runes("c"))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, svc.clearCalls)
	assert.Contains(t, m.View(), viewer.ClearDisabledTitle)
}

func TestModelLoadErrorQuitsAfterDismiss(t *testing.T) {
	svc := &fakeService{getErr: &nifi.APIError{Method: "GET", StatusCode: 403, Body: "Unable to view component"}}
	m, v := newTestModel(t, svc, true)
	m = loaded(t, m)

	assert.False(t, v.IsOpen())
	assert.Contains(t, m.View(), "Unable to view component")
	require.Error(t, m.LoadErr())

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestModelSortKeys(t *testing.T) {
	m, v := newTestModel(t, &fakeService{state: sampleState()}, true)
	m = loaded(t, m)

	m, _ = update(t, m, runes("r"))
	rows := v.Table().Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "k2", rows[0].Key)
	assert.Contains(t, m.View(), "Key ▼")

	m, _ = update(t, m, runes("s"))
	assert.Equal(t, "value", v.Table().View().SortSpec().ColumnID)
	assert.True(t, v.Table().View().SortSpec().SortAsc)
	assert.Contains(t, m.View(), "Value ▲")
}

func TestModelCopySelected(t *testing.T) {
	m, _ := newTestModel(t, &fakeService{state: sampleState()}, true)
	m = loaded(t, m)

	var copied string
	m.copy = func(s string) error {
		copied = s
		return nil
	}

	m, cmd := update(t, m, runes("y"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, "v1", copied)
	assert.Contains(t, m.View(), "Copied value of k1")

	m.copy = func(string) error { return errors.New("no clipboard") }
	m, cmd = update(t, m, runes("y"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "Copy failed")
}

func TestModelCloseUnbindsComponent(t *testing.T) {
	m, v := newTestModel(t, &fakeService{state: sampleState()}, true)
	m = loaded(t, m)
	require.NotNil(t, v.Component())

	m, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Nil(t, v.Component())
	assert.False(t, v.IsOpen())
	assert.Equal(t, "", m.View())
}

func TestCellFlattensAndTruncates(t *testing.T) {
	assert.Equal(t, "a b", cell("a\nb", 10))
	got := cell(strings.Repeat("x", 20), 5)
	assert.Equal(t, "xxxx…", got)
}

func TestModelRequestsHonorTimeout(t *testing.T) {
	notices := NewNotices()
	v, err := viewer.New(context.Background(), viewer.Options{
		Service: waitingService{},
		Errors:  notices,
		Dialogs: notices,
	})
	require.NoError(t, err)

	m := New(context.Background(), v, notices, testComponent, true).WithTimeout(20 * time.Millisecond)

	done := make(chan tea.Msg, 1)
	go func() { done <- m.Init()() }()

	select {
	case msg := <-done:
		loadedMsg, ok := msg.(stateLoadedMsg)
		require.True(t, ok)
		assert.ErrorIs(t, loadedMsg.err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("state request was not bounded by the timeout")
	}
}
