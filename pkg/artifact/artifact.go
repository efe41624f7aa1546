// Copyright 2025, Pulumi Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package artifact defines the unit of reconciliation and the closed set of
// resource kinds the engine understands. Each kind knows how to enumerate
// itself from a source tree or from the live service, how to materialize
// itself back to disk, and how to shape itself for the management REST API.
package artifact

import (
	"context"

	"github.com/apimops/apimops/pkg/apim"
)

// Spec is an API specification document bundled with an api artifact.
type Spec struct {
	Format  string `json:"format"`
	Content string `json:"content"`
	Path    string `json:"path"`
}

// Artifact is the engine's unit of declarative state: one JSON-valued record
// per reconciliation key. For the api kind the sibling Spec and Operations
// fields participate in the hash together with Properties; the API is an
// atomic unit.
type Artifact struct {
	Kind       string                 `json:"kind"`
	ID         string                 `json:"id"`
	Hash       string                 `json:"hash"`
	Properties map[string]interface{} `json:"properties"`

	// api kind only.
	Spec       *Spec                             `json:"spec,omitempty"`
	Operations map[string]map[string]interface{} `json:"operations,omitempty"`
}

// Key returns the globally unique "<kind>:<id>" reconciliation key.
func (a *Artifact) Key() string {
	return a.Kind + ":" + a.ID
}

// DisplayName returns a human-readable name for plan and progress output.
func (a *Artifact) DisplayName() string {
	if name, ok := a.Properties["displayName"].(string); ok && name != "" {
		return name
	}
	if name, ok := a.Properties["name"].(string); ok && name != "" {
		return name
	}
	return a.ID
}

// RESTClient is the subset of the management-plane transport the kinds and
// the engine consume. *apim.Client satisfies it; tests substitute fakes.
type RESTClient interface {
	Get(ctx context.Context, path string) (map[string]interface{}, error)
	List(ctx context.Context, path string) ([]map[string]interface{}, error)
	Put(ctx context.Context, path string, body interface{}) (map[string]interface{}, error)
	Delete(ctx context.Context, path string) error
}

// Kind is the uniform contract every resource kind implements.
type Kind interface {
	// Name returns the kind's registry name, e.g. "named_value".
	Name() string

	// ReadLocal enumerates this kind from the source tree. A missing kind
	// directory yields an empty map, not an error.
	ReadLocal(dir string) (map[string]*Artifact, error)

	// ReadLive enumerates this kind from the remote service, bundling
	// dependent subresources for composite kinds.
	ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error)

	// WriteLocal materializes artifacts into the source tree format.
	WriteLocal(dir string, artifacts map[string]*Artifact) error

	// RESTPayload builds the PUT body for an artifact, stripping engine
	// fields and cross-reference fields the target schema rejects.
	RESTPayload(a *Artifact) interface{}

	// ResourcePath maps a logical id to the management REST path.
	ResourcePath(id string) string
}

// OperationPayload is one operation PUT issued after a parent API succeeds.
type OperationPayload struct {
	ID   string
	Body interface{}
}

// OperationProvider is implemented by kinds that carry child operations the
// applier must PUT after the parent resource.
type OperationProvider interface {
	OperationPayloads(a *Artifact) []OperationPayload
}

// isNotFound reports whether a live read failed only because the subresource
// does not exist, which the kinds treat as absence rather than failure.
func isNotFound(err error) bool {
	return apim.IsNotFound(err)
}
