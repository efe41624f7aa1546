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

package artifact

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFormat(t *testing.T) {
	t.Parallel()

	h, err := Hash(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "sha256:"))
	assert.Len(t, strings.TrimPrefix(h, "sha256:"), 64)
}

func TestHashKeyOrderIndependence(t *testing.T) {
	t.Parallel()

	// Two documents with identical content but different key order at every
	// nesting depth must hash identically.
	var t1, t2 map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"b": {"y": 2, "x": 1}, "a": [{"k2": "v", "k1": "u"}]}`), &t1))
	require.NoError(t, json.Unmarshal([]byte(`{"a": [{"k1": "u", "k2": "v"}], "b": {"x": 1, "y": 2}}`), &t2))

	h1, err := Hash(t1)
	require.NoError(t, err)
	h2, err := Hash(t2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashSensitivity(t *testing.T) {
	t.Parallel()

	h1, err := Hash(map[string]interface{}{"value": "v1"})
	require.NoError(t, err)
	h2, err := Hash(map[string]interface{}{"value": "v2"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	h3, err := Hash(map[string]interface{}{"value": "v1", "extra": true})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestHashScalarsAndNull(t *testing.T) {
	t.Parallel()

	for _, v := range []interface{}{nil, true, false, "s", float64(3), []interface{}{1, 2}} {
		h, err := Hash(v)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(h, "sha256:"))
	}
}
