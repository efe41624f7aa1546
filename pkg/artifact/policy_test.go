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
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIPolicyReadLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	apiDir := filepath.Join(dir, "apis", "echo-api")
	writeFile(t, filepath.Join(apiDir, "apiInformation.json"), `{"id": "/apis/echo-api"}`)
	writeFile(t, filepath.Join(apiDir, "policy.xml"), "<policies/>")

	artifacts, err := ByName("api_policy").ReadLocal(dir)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	a := artifacts["api_policy:echo-api"]
	require.NotNil(t, a)
	assert.Equal(t, "rawxml", a.Properties["format"])
	assert.Equal(t, "<policies/>", a.Properties["value"])
	assert.Equal(t, "/apis/echo-api/policies/policy", ByName("api_policy").ResourcePath("echo-api"))
}

func TestOperationPolicyReadLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	apiDir := filepath.Join(dir, "apis", "echo-api")
	writeFile(t, filepath.Join(apiDir, "apiInformation.json"), `{"id": "/apis/echo-api"}`)
	writeFile(t, filepath.Join(apiDir, "get-echo", "policy.xml"), "<policies/>")

	artifacts, err := ByName("api_operation_policy").ReadLocal(dir)
	require.NoError(t, err)
	require.Contains(t, artifacts, "api_operation_policy:echo-api/get-echo")
	assert.Equal(t, "/apis/echo-api/operations/get-echo/policies/policy",
		ByName("api_operation_policy").ResourcePath("echo-api/get-echo"))
}

func TestServicePolicyReadLocalBothLocations(t *testing.T) {
	t.Parallel()

	nested := t.TempDir()
	writeFile(t, filepath.Join(nested, "policy", "policy.xml"), "<policies/>")
	artifacts, err := ByName("service_policy").ReadLocal(nested)
	require.NoError(t, err)
	require.Contains(t, artifacts, "service_policy:policy")

	flat := t.TempDir()
	writeFile(t, filepath.Join(flat, "policy.xml"), "<policies/>")
	artifacts, err = ByName("service_policy").ReadLocal(flat)
	require.NoError(t, err)
	require.Contains(t, artifacts, "service_policy:policy")
}

func TestServicePolicyReadLiveAbsent(t *testing.T) {
	t.Parallel()

	// No global policy set: the 404 means absence, not failure.
	artifacts, err := ByName("service_policy").ReadLive(context.Background(), newFakeClient())
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestParentPolicyReadLiveSkipsParentsWithoutPolicy(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.lists["/products"] = []map[string]interface{}{{"name": "starter"}, {"name": "unlimited"}}
	client.objects["/products/starter/policies/policy"] = map[string]interface{}{
		"name":       "policy",
		"properties": map[string]interface{}{"format": "rawxml", "value": "<policies/>"},
	}

	artifacts, err := ByName("product_policy").ReadLive(context.Background(), client)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Contains(t, artifacts, "product_policy:starter")
}

func TestAPIDiagnosticReadLocalAndPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	apiDir := filepath.Join(dir, "apis", "echo-api")
	writeFile(t, filepath.Join(apiDir, "apiInformation.json"), `{"id": "/apis/echo-api"}`)
	writeFile(t, filepath.Join(apiDir, "diagnostics", "applicationinsights.json"),
		`{"id": "/apis/echo-api/diagnostics/applicationinsights", "alwaysLog": "allErrors"}`)

	kind := ByName("api_diagnostic")
	artifacts, err := kind.ReadLocal(dir)
	require.NoError(t, err)
	require.Contains(t, artifacts, "api_diagnostic:echo-api/applicationinsights")
	assert.Equal(t, "/apis/echo-api/diagnostics/applicationinsights",
		kind.ResourcePath("echo-api/applicationinsights"))
}

func TestPolicyRoundTripPreservesHash(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "apis", "echo-api", "apiInformation.json"), `{"id": "/apis/echo-api"}`)
	writeFile(t, filepath.Join(src, "apis", "echo-api", "policy.xml"), "<policies/>")

	kind := ByName("api_policy")
	before, err := kind.ReadLocal(src)
	require.NoError(t, err)

	out := t.TempDir()
	// The parent directory must exist for the suffix lookup on write; the
	// api kind creates it in a real extract.
	writeFile(t, filepath.Join(out, "apis", "echo-api", "apiInformation.json"), `{"id": "/apis/echo-api"}`)
	require.NoError(t, kind.WriteLocal(out, before))

	after, err := kind.ReadLocal(out)
	require.NoError(t, err)
	require.Contains(t, after, "api_policy:echo-api")
	assert.Equal(t, before["api_policy:echo-api"].Hash, after["api_policy:echo-api"].Hash)
}
