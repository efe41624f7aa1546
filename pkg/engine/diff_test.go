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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/state"
)

func localArtifact(t *testing.T, kind, id string, props map[string]interface{}) *artifact.Artifact {
	t.Helper()
	hash, err := artifact.Hash(props)
	require.NoError(t, err)
	return &artifact.Artifact{Kind: kind, ID: id, Hash: hash, Properties: props}
}

func stateArtifact(t *testing.T, kind, id string, props map[string]interface{}) *state.Artifact {
	t.Helper()
	hash, err := artifact.Hash(props)
	require.NoError(t, err)
	return &state.Artifact{Kind: kind, ID: id, Hash: hash, Properties: props}
}

func TestDiffCompleteness(t *testing.T) {
	t.Parallel()

	local := map[string]*artifact.Artifact{
		"tag:a": localArtifact(t, "tag", "a", map[string]interface{}{"displayName": "A"}),
		"tag:b": localArtifact(t, "tag", "b", map[string]interface{}{"displayName": "B"}),
	}
	st := map[string]*state.Artifact{
		"tag:b": stateArtifact(t, "tag", "b", map[string]interface{}{"displayName": "B old"}),
		"tag:c": stateArtifact(t, "tag", "c", map[string]interface{}{"displayName": "C"}),
	}

	changes := Diff(local, st)
	keys := map[string]Action{}
	for _, c := range changes {
		keys[c.Key] = c.Action
	}
	// Every key in the union appears exactly once.
	require.Len(t, changes, 3)
	assert.Equal(t, ActionCreate, keys["tag:a"])
	assert.Equal(t, ActionUpdate, keys["tag:b"])
	assert.Equal(t, ActionDelete, keys["tag:c"])
}

func TestDiffSoundnessEqualHashIsNoop(t *testing.T) {
	t.Parallel()

	props := map[string]interface{}{"displayName": "A", "value": "v"}
	local := map[string]*artifact.Artifact{"tag:a": localArtifact(t, "tag", "a", props)}
	st := map[string]*state.Artifact{"tag:a": stateArtifact(t, "tag", "a", props)}

	changes := Diff(local, st)
	require.Len(t, changes, 1)
	assert.Equal(t, ActionNoop, changes[0].Action)
	assert.Equal(t, "unchanged", changes[0].Detail)
}

func TestDiffKeysLexicographic(t *testing.T) {
	t.Parallel()

	local := map[string]*artifact.Artifact{
		"tag:z": localArtifact(t, "tag", "z", map[string]interface{}{}),
		"api:a": localArtifact(t, "api", "a", map[string]interface{}{}),
	}
	changes := Diff(local, nil)
	require.Len(t, changes, 2)
	assert.Equal(t, "api:a", changes[0].Key)
	assert.Equal(t, "tag:z", changes[1].Key)
}

func TestDiffDetailScalarChange(t *testing.T) {
	t.Parallel()

	local := map[string]*artifact.Artifact{
		"api:echo": localArtifact(t, "api", "echo", map[string]interface{}{"name": "Echo", "path": "/v2"}),
	}
	st := map[string]*state.Artifact{
		"api:echo": stateArtifact(t, "api", "echo", map[string]interface{}{"name": "Echo", "path": "/v1"}),
	}

	changes := Diff(local, st)
	require.Len(t, changes, 1)
	assert.Equal(t, "path '/v1'→'/v2'", changes[0].Detail)
}

func TestDiffDetailAddedRemovedAndTruncation(t *testing.T) {
	t.Parallel()

	detail := diffDetail(
		map[string]interface{}{"a": "1", "b": "1", "c": "1", "d": "1", "gone": "x"},
		map[string]interface{}{"a": "2", "b": "2", "c": "2", "d": "2", "fresh": "y"},
	)
	// Only the first three entries survive, with an ellipsis.
	assert.Equal(t, "a '1'→'2', b '1'→'2', c '1'→'2'...", detail)

	assert.Equal(t, "added x", diffDetail(
		map[string]interface{}{},
		map[string]interface{}{"x": "1"},
	))
	assert.Equal(t, "removed x", diffDetail(
		map[string]interface{}{"x": "1"},
		map[string]interface{}{},
	))
	assert.Equal(t, "changed items", diffDetail(
		map[string]interface{}{"items": []interface{}{"a"}},
		map[string]interface{}{"items": []interface{}{"b"}},
	))
}

func TestDiffDisplayNameFallback(t *testing.T) {
	t.Parallel()

	local := map[string]*artifact.Artifact{
		"tag:t1": localArtifact(t, "tag", "t1", map[string]interface{}{"displayName": "Team One"}),
		"tag:t2": localArtifact(t, "tag", "t2", map[string]interface{}{"name": "team-two"}),
		"tag:t3": localArtifact(t, "tag", "t3", map[string]interface{}{}),
	}
	changes := Diff(local, nil)
	names := map[string]string{}
	for _, c := range changes {
		names[c.Key] = c.DisplayName
	}
	assert.Equal(t, "Team One", names["tag:t1"])
	assert.Equal(t, "team-two", names["tag:t2"])
	assert.Equal(t, "t3", names["tag:t3"])
}
