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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimops/apimops/pkg/state"
)

func writeSource(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewPlanCreateFromEmptyState(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSource(t, src, "namedValues/k1.json", `{"id": "/namedValues/k1", "displayName": "k1", "value": "v"}`)

	p, err := NewPlan(src, state.Empty("sub", "rg", "svc"), TargetCoords{}, nil)
	require.NoError(t, err)

	assert.Equal(t, Summary{Create: 1}, p.Summary)
	require.Len(t, p.Changes, 1)
	assert.Equal(t, ActionCreate, p.Changes[0].Action)
	assert.Equal(t, "named_value", p.Changes[0].Kind)
	assert.Equal(t, "named_value:k1", p.Changes[0].Key)
	assert.True(t, p.HasChanges())
}

func TestNewPlanNoChanges(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSource(t, src, "tags/a.json", `{"id": "/tags/a", "displayName": "A"}`)

	st := state.Empty("sub", "rg", "svc")
	first, err := NewPlan(src, st, TargetCoords{}, nil)
	require.NoError(t, err)
	require.Len(t, first.Changes, 1)

	// Simulate the apply landing, then re-plan.
	st.Artifacts["tag:a"] = &state.Artifact{
		Kind:       "tag",
		ID:         "a",
		Hash:       first.Changes[0].New.Hash,
		Properties: first.Changes[0].New.Properties,
	}
	second, err := NewPlan(src, st, TargetCoords{}, nil)
	require.NoError(t, err)
	assert.False(t, second.HasChanges())
	assert.Equal(t, 1, second.Summary.Noop)
}

func TestNewPlanOnlyFilter(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSource(t, src, "tags/a.json", `{"id": "/tags/a"}`)
	writeSource(t, src, "namedValues/k1.json", `{"id": "/namedValues/k1", "value": "v"}`)

	st := state.Empty("sub", "rg", "svc")
	// State carries a kind outside the filter; it must not show as a delete.
	st.Artifacts["backend:b1"] = &state.Artifact{Kind: "backend", ID: "b1", Hash: "sha256:x"}

	p, err := NewPlan(src, st, TargetCoords{}, map[string]bool{"tag": true})
	require.NoError(t, err)
	require.Len(t, p.Changes, 1)
	assert.Equal(t, "tag:a", p.Changes[0].Key)
}

func TestOrderCreatesForwardDeletesReverse(t *testing.T) {
	t.Parallel()

	p := &Plan{Changes: []Change{
		{Action: ActionDelete, Key: "named_value:old", Kind: "named_value"},
		{Action: ActionCreate, Key: "product_group:p/g", Kind: "product_group"},
		{Action: ActionNoop, Key: "tag:same", Kind: "tag"},
		{Action: ActionCreate, Key: "named_value:new", Kind: "named_value"},
		{Action: ActionDelete, Key: "product_api:p/a", Kind: "product_api"},
		{Action: ActionUpdate, Key: "api:echo", Kind: "api"},
	}}

	ordered := p.Order()
	var keys []string
	for _, c := range ordered {
		keys = append(keys, c.Key)
	}
	// Creates and updates in registry order, then deletes in reverse
	// registry order; noops are dropped.
	assert.Equal(t, []string{
		"named_value:new",
		"api:echo",
		"product_group:p/g",
		"product_api:p/a",
		"named_value:old",
	}, keys)
}

func TestOrderEveryCreateBeforeEveryDelete(t *testing.T) {
	t.Parallel()

	p := &Plan{Changes: []Change{
		{Action: ActionDelete, Key: "api:gone", Kind: "api"},
		{Action: ActionCreate, Key: "api_policy:echo", Kind: "api_policy"},
	}}
	ordered := p.Order()
	require.Len(t, ordered, 2)
	assert.Equal(t, ActionCreate, ordered[0].Action)
	assert.Equal(t, ActionDelete, ordered[1].Action)
}

func TestPlanSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSource(t, src, "tags/a.json", `{"id": "/tags/a"}`)

	p, err := NewPlan(src, state.Empty("sub", "rg", "svc"), TargetCoords{
		SubscriptionID: "sub", ResourceGroup: "rg", ServiceName: "svc",
	}, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, p.Save(path))

	loaded, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, p.Summary, loaded.Summary)
	assert.Equal(t, p.TargetCoords, loaded.TargetCoords)
	require.Len(t, loaded.Changes, 1)
	assert.Equal(t, p.Changes[0].Key, loaded.Changes[0].Key)
	assert.Equal(t, p.Changes[0].New.Hash, loaded.Changes[0].New.Hash)
}
