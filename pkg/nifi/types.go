// Package nifi provides a small client for the parts of the NiFi REST API that
// deal with component state: reading a component's local and cluster state,
// clearing it, and the cluster summary used to decide whether node scopes are
// meaningful.
package nifi

import (
	"context"
	"fmt"
	"strings"
)

// StateEntry is one key/value pair as returned by the server.
type StateEntry struct {
	Key                string `json:"key"`
	Value              string `json:"value"`
	ClusterNodeID      string `json:"clusterNodeId,omitempty"`
	ClusterNodeAddress string `json:"clusterNodeAddress,omitempty"`
}

// StateMap is the state a component holds in one scope.
type StateMap struct {
	Scope      string       `json:"scope,omitempty"`
	TotalCount int          `json:"totalEntryCount,omitempty"`
	State      []StateEntry `json:"state"`
}

// ComponentState is the body of a GET {uri}/state response.
type ComponentState struct {
	ComponentID      string    `json:"componentId,omitempty"`
	StateDescription string    `json:"stateDescription"`
	LocalState       *StateMap `json:"localState,omitempty"`
	ClusterState     *StateMap `json:"clusterState,omitempty"`
}

// ComponentStateEntity wraps ComponentState on the wire.
type ComponentStateEntity struct {
	ComponentState ComponentState `json:"componentState"`
}

// Revision is the optimistic-concurrency token required for mutations.
type Revision struct {
	Version  int64  `json:"version"`
	ClientID string `json:"clientId,omitempty"`
}

// ComponentStateClearEntity is the body of a clear-requests response.
type ComponentStateClearEntity struct {
	Revision Revision `json:"revision"`
}

// ClusterSummary reports whether the instance is part of a cluster.
type ClusterSummary struct {
	Clustered          bool `json:"clustered"`
	ConnectedToCluster bool `json:"connectedToCluster"`
	ConnectedNodeCount int  `json:"connectedNodeCount"`
	TotalNodeCount     int  `json:"totalNodeCount"`
}

type clusterSummaryEntity struct {
	ClusterSummary ClusterSummary `json:"clusterSummary"`
}

// ComponentInfo describes the component a state URI belongs to.
type ComponentInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// CanClear reports whether the component is in a state that allows clearing.
// Running processors and enabled services must be stopped first.
func (c ComponentInfo) CanClear() bool {
	switch strings.ToUpper(c.State) {
	case "RUNNING", "ENABLED", "ENABLING":
		return false
	default:
		return true
	}
}

type componentEntity struct {
	Component ComponentInfo `json:"component"`
}

// Component identifies the remote entity whose state is viewed.
type Component struct {
	URI  string
	Name string
}

// ComponentType is the REST collection a component lives in.
type ComponentType string

const (
	// TypeProcessor addresses /processors/{id}
	TypeProcessor ComponentType = "processor"
	// TypeControllerService addresses /controller-services/{id}
	TypeControllerService ComponentType = "controller-service"
	// TypeReportingTask addresses /reporting-tasks/{id}
	TypeReportingTask ComponentType = "reporting-task"
)

// ParseComponentType accepts the singular or plural form, case-insensitively.
func ParseComponentType(s string) (ComponentType, error) {
	normalized := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	switch ComponentType(normalized) {
	case TypeProcessor, TypeControllerService, TypeReportingTask:
		return ComponentType(normalized), nil
	case "":
		return TypeProcessor, nil
	default:
		return "", fmt.Errorf("unsupported component type: %s (supported: processor, controller-service, reporting-task)", s)
	}
}

// ComponentURI builds the resource URI of a component under baseURL.
func ComponentURI(baseURL string, typ ComponentType, id string) string {
	return fmt.Sprintf("%s/%ss/%s", strings.TrimRight(baseURL, "/"), typ, id)
}

// StateService is the subset of the client used by the viewer.
type StateService interface {
	// GetState fetches the local and cluster state of the component at uri.
	GetState(ctx context.Context, uri string) (*ComponentState, error)
	// ClearState clears all state of the component at uri.
	ClearState(ctx context.Context, uri string, rev Revision) (*Revision, error)
}
