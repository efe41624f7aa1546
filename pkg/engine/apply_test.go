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

package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimops/apimops/pkg/apim"
	"github.com/apimops/apimops/pkg/state"
)

// fakeClient records the REST mutations the applier issues; errs scripts a
// failure for a path.
type fakeClient struct {
	puts    []string
	bodies  map[string]interface{}
	deletes []string
	lists   map[string][]map[string]interface{}
	errs    map[string]error
}

func newFake() *fakeClient {
	return &fakeClient{
		bodies: map[string]interface{}{},
		lists:  map[string][]map[string]interface{}{},
		errs:   map[string]error{},
	}
}

func (c *fakeClient) Get(_ context.Context, path string) (map[string]interface{}, error) {
	if err := c.errs[path]; err != nil {
		return nil, err
	}
	return nil, &apim.Error{StatusCode: 404}
}

func (c *fakeClient) List(_ context.Context, path string) ([]map[string]interface{}, error) {
	if err := c.errs[path]; err != nil {
		return nil, err
	}
	return c.lists[path], nil
}

func (c *fakeClient) Put(_ context.Context, path string, body interface{}) (map[string]interface{}, error) {
	if err := c.errs[path]; err != nil {
		return nil, err
	}
	c.puts = append(c.puts, path)
	c.bodies[path] = body
	return nil, nil
}

func (c *fakeClient) Delete(_ context.Context, path string) error {
	if err := c.errs[path]; err != nil {
		return err
	}
	c.deletes = append(c.deletes, path)
	return nil
}

// memBackend is an in-memory Backend that snapshots the artifact keys at
// every write, so tests can assert state-after-each-success ordering.
type memBackend struct {
	writes [][]string
}

func (b *memBackend) Init(_ context.Context, sub, rg, svc string) (*state.State, error) {
	return state.Empty(sub, rg, svc), nil
}
func (b *memBackend) Read(context.Context) (*state.State, error) { return nil, nil }
func (b *memBackend) Write(_ context.Context, s *state.State) error {
	var keys []string
	for k := range s.Artifacts {
		keys = append(keys, k)
	}
	b.writes = append(b.writes, keys)
	return nil
}
func (b *memBackend) Lock(context.Context) error        { return nil }
func (b *memBackend) Unlock(context.Context) error      { return nil }
func (b *memBackend) ForceUnlock(context.Context) error { return nil }

func TestApplySingleCreate(t *testing.T) {
	t.Parallel()

	props := map[string]interface{}{"displayName": "k1", "value": "v"}
	p := &Plan{Changes: []Change{{
		Action: ActionCreate,
		Key:    "named_value:k1",
		Kind:   "named_value",
		ID:     "k1",
		New:    localArtifact(t, "named_value", "k1", props),
	}}}

	client := newFake()
	backend := &memBackend{}
	st := state.Empty("sub", "rg", "svc")

	succeeded, total, err := Apply(context.Background(), p, client, backend, st, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, total)

	require.Equal(t, []string{"/namedValues/k1"}, client.puts)
	body := client.bodies["/namedValues/k1"].(map[string]interface{})
	assert.Equal(t, props, body["properties"])

	got := st.Artifacts["named_value:k1"]
	require.NotNil(t, got)
	assert.Equal(t, p.Changes[0].New.Hash, got.Hash)
	require.NotNil(t, st.LastApplied)
}

func TestApplyStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	p := &Plan{Changes: []Change{
		{
			Action: ActionCreate, Key: "named_value:a", Kind: "named_value", ID: "a",
			New: localArtifact(t, "named_value", "a", map[string]interface{}{"value": "1"}),
		},
		{
			Action: ActionCreate, Key: "tag:b", Kind: "tag", ID: "b",
			New: localArtifact(t, "tag", "b", map[string]interface{}{}),
		},
	}}

	client := newFake()
	client.errs["/tags/b"] = &apim.Error{
		StatusCode: 409, Code: "ResourceConflict", Message: "in use", RequestID: "req-9",
	}
	backend := &memBackend{}
	st := state.Empty("sub", "rg", "svc")

	var out bytes.Buffer
	succeeded, total, err := Apply(context.Background(), p, client, backend, st, &out)
	require.Error(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, total)

	// State holds every previously-successful change and none of the
	// failing one.
	assert.Contains(t, st.Artifacts, "named_value:a")
	assert.NotContains(t, st.Artifacts, "tag:b")
	assert.Contains(t, err.Error(), "Permanent error")
	assert.Contains(t, err.Error(), "[ResourceConflict]")
	assert.Contains(t, err.Error(), "(req-id: req-9)")
	assert.Contains(t, out.String(), "1 of 2 changes applied")
}

func TestApplyTransientErrorLabel(t *testing.T) {
	t.Parallel()

	p := &Plan{Changes: []Change{{
		Action: ActionCreate, Key: "tag:a", Kind: "tag", ID: "a",
		New: localArtifact(t, "tag", "a", map[string]interface{}{}),
	}}}
	client := newFake()
	client.errs["/tags/a"] = &apim.Error{StatusCode: 429, Message: "throttled", Transient: true}

	_, _, err := Apply(context.Background(), p, client, &memBackend{}, state.Empty("s", "r", "v"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Transient error (exhausted retries)")
}

func TestApplyStateWrittenAfterEachChange(t *testing.T) {
	t.Parallel()

	p := &Plan{Changes: []Change{
		{
			Action: ActionCreate, Key: "named_value:a", Kind: "named_value", ID: "a",
			New: localArtifact(t, "named_value", "a", map[string]interface{}{}),
		},
		{
			Action: ActionCreate, Key: "tag:b", Kind: "tag", ID: "b",
			New: localArtifact(t, "tag", "b", map[string]interface{}{}),
		},
	}}

	backend := &memBackend{}
	_, _, err := Apply(context.Background(), p, newFake(), backend, state.Empty("s", "r", "v"), &bytes.Buffer{})
	require.NoError(t, err)

	// One write per change plus the final stamp write, each reflecting the
	// changes applied so far.
	require.Len(t, backend.writes, 3)
	assert.Len(t, backend.writes[0], 1)
	assert.Len(t, backend.writes[1], 2)
}

func TestApplyDeleteRemovesFromState(t *testing.T) {
	t.Parallel()

	p := &Plan{Changes: []Change{{
		Action: ActionDelete, Key: "tag:gone", Kind: "tag", ID: "gone",
		Old: &state.Artifact{Kind: "tag", ID: "gone", Hash: "sha256:x"},
	}}}

	client := newFake()
	st := state.Empty("sub", "rg", "svc")
	st.Artifacts["tag:gone"] = p.Changes[0].Old

	succeeded, _, err := Apply(context.Background(), p, client, &memBackend{}, st, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{"/tags/gone"}, client.deletes)
	assert.NotContains(t, st.Artifacts, "tag:gone")
}

func TestApplyAPIPushesOperationsAfterParent(t *testing.T) {
	t.Parallel()

	a := localArtifact(t, "api", "echo", map[string]interface{}{"path": "echo"})
	a.Operations = map[string]map[string]interface{}{
		"get-echo": {"method": "GET", "policy": "<p/>"},
	}
	p := &Plan{Changes: []Change{{
		Action: ActionUpdate, Key: "api:echo", Kind: "api", ID: "echo",
		Old: &state.Artifact{Kind: "api", ID: "echo", Hash: "sha256:old"},
		New: a,
	}}}

	client := newFake()
	_, _, err := Apply(context.Background(), p, client, &memBackend{}, state.Empty("s", "r", "v"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, []string{"/apis/echo", "/apis/echo/operations/get-echo"}, client.puts)

	opBody := client.bodies["/apis/echo/operations/get-echo"].(map[string]interface{})
	opProps := opBody["properties"].(map[string]interface{})
	assert.NotContains(t, opProps, "policy")
}

func TestApplyForceContinuesPastFailures(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSource(t, src, "namedValues/bad.json", `{"id": "/namedValues/bad", "value": "x"}`)
	writeSource(t, src, "namedValues/good.json", `{"id": "/namedValues/good", "value": "y"}`)

	client := newFake()
	client.errs["/namedValues/bad"] = &apim.Error{StatusCode: 400, Message: "nope"}

	st := state.Empty("sub", "rg", "svc")
	st.Artifacts["tag:stale"] = &state.Artifact{Kind: "tag", ID: "stale", Hash: "sha256:x"}

	succeeded, total, err := ApplyForce(context.Background(), src, client, &memBackend{}, st, nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, total)

	// State is rebuilt from scratch: stale entries are gone, successes are
	// recorded, failures are not.
	assert.NotContains(t, st.Artifacts, "tag:stale")
	assert.Contains(t, st.Artifacts, "named_value:good")
	assert.NotContains(t, st.Artifacts, "named_value:bad")
}
