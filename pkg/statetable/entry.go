// Package statetable holds the in-memory view of a component's state entries:
// the filter and sort engines, a data view with batched updates and row-count
// notifications, and the table that keeps displayed/total counters in sync.
package statetable

import (
	"log/slog"

	"github.com/dlclark/regexp2"
)

// ClusterScope is the scope label given to entries from the cluster-wide state map.
const ClusterScope = "Cluster"

// Column identifiers accepted by SortSpec.
const (
	ColumnKey   = "key"
	ColumnValue = "value"
	ColumnScope = "scope"
)

// Entry is a single row of component state.
type Entry struct {
	ID    int     `json:"id"`
	Key   string  `json:"key"`
	Value string  `json:"value"`
	Scope *string `json:"scope,omitempty"` // node address, ClusterScope, or nil
}

// ScopeString returns the scope or "" when the entry has none.
func (e Entry) ScopeString() string {
	if e.Scope == nil {
		return ""
	}
	return *e.Scope
}

// Field returns the value of the named column, with missing values as "".
func (e Entry) Field(columnID string) string {
	switch columnID {
	case ColumnKey:
		return e.Key
	case ColumnValue:
		return e.Value
	case ColumnScope:
		return e.ScopeString()
	default:
		return ""
	}
}

// FilterArgs carries the current filter criteria.
type FilterArgs struct {
	SearchString string
}

// SortSpec selects the column and direction used to order rows.
type SortSpec struct {
	ColumnID string
	SortAsc  bool
}

// DefaultSort orders rows ascending by key.
var DefaultSort = SortSpec{ColumnID: ColumnKey, SortAsc: true}

func compilePattern(search string) *regexp2.Regexp {
	re, err := regexp2.Compile(search, regexp2.IgnoreCase|regexp2.ECMAScript)
	if err != nil {
		slog.Debug("Invalid filter pattern", "pattern", search, "error", err)
		return nil
	}
	return re
}

func matches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

func matchEntry(re *regexp2.Regexp, entry Entry) bool {
	if re == nil {
		return false
	}
	if matches(re, entry.Key) || matches(re, entry.Value) {
		return true
	}
	if entry.Scope != nil {
		return matches(re, *entry.Scope)
	}
	return false
}

// Filter reports whether entry satisfies args. An empty search string matches
// everything; an invalid pattern matches nothing. The pattern is compiled on
// every call; use a Matcher when filtering many entries.
func Filter(entry Entry, args FilterArgs) bool {
	if args.SearchString == "" {
		return true
	}
	return matchEntry(compilePattern(args.SearchString), entry)
}

// Matcher filters like Filter but keeps the most recently compiled pattern,
// so a refresh compiles once. A nil compiled pattern records an invalid one.
type Matcher struct {
	search   string
	re       *regexp2.Regexp
	compiled bool
}

func (m *Matcher) pattern(search string) *regexp2.Regexp {
	if !m.compiled || m.search != search {
		m.search, m.re, m.compiled = search, compilePattern(search), true
	}
	return m.re
}

// Filter is a FilterFunc backed by m's pattern.
func (m *Matcher) Filter(entry Entry, args FilterArgs) bool {
	if args.SearchString == "" {
		return true
	}
	return matchEntry(m.pattern(args.SearchString), entry)
}

// compare orders two entries on spec.ColumnID, ascending.
func compare(spec SortSpec, a, b Entry) int {
	as, bs := a.Field(spec.ColumnID), b.Field(spec.ColumnID)
	switch {
	case as == bs:
		return 0
	case as > bs:
		return 1
	default:
		return -1
	}
}
