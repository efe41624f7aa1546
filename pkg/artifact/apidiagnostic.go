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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/apimops/apimops/pkg/util/contract"
)

// apiDiagnosticKind is a diagnostic setting scoped to one API, stored under
// the API directory's diagnostics/ subdirectory with the compound id
// "<api>/<diagnostic>".
type apiDiagnosticKind struct{}

func (k *apiDiagnosticKind) Name() string { return "api_diagnostic" }

func (k *apiDiagnosticKind) ReadLocal(dir string) (map[string]*Artifact, error) {
	base := filepath.Join(dir, "apis")
	artifacts := map[string]*Artifact{}
	if !isDir(base) {
		return artifacts, nil
	}
	entries, err := readDirSorted(base)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		apiDir := filepath.Join(base, entry.Name())
		apiID, ok, err := parentIDFromInfo(apiDir, entry.Name(), apiInfoFiles)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		diagDir := filepath.Join(apiDir, "diagnostics")
		if !isDir(diagDir) {
			continue
		}
		diagEntries, err := readDirSorted(diagDir)
		if err != nil {
			return nil, err
		}
		for _, diagEntry := range diagEntries {
			name := diagEntry.Name()
			if diagEntry.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			props, err := readJSONObject(filepath.Join(diagDir, name))
			if err != nil {
				return nil, err
			}
			props = ResolveRefs(props, diagDir)
			diagID := extractID(props, strings.TrimSuffix(name, ".json"))
			a := &Artifact{Kind: k.Name(), ID: apiID + "/" + diagID, Properties: props}
			if a.Hash, err = Hash(props); err != nil {
				return nil, err
			}
			artifacts[a.Key()] = a
		}
	}
	return artifacts, nil
}

func (k *apiDiagnosticKind) ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error) {
	apis, err := client.List(ctx, "/apis")
	if err != nil {
		return nil, errors.WithMessage(err, "listing apis")
	}
	artifacts := map[string]*Artifact{}
	for _, api := range apis {
		apiID, _ := api["name"].(string)
		if apiID == "" {
			continue
		}
		diags, err := client.List(ctx, "/apis/"+apiID+"/diagnostics")
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, errors.WithMessagef(err, "listing diagnostics for api %s", apiID)
		}
		for _, diag := range diags {
			diagID, _ := diag["name"].(string)
			if diagID == "" {
				continue
			}
			props := itemProperties(diag)
			a := &Artifact{Kind: k.Name(), ID: apiID + "/" + diagID, Properties: props}
			if a.Hash, err = Hash(props); err != nil {
				return nil, err
			}
			artifacts[a.Key()] = a
		}
	}
	return artifacts, nil
}

func (k *apiDiagnosticKind) WriteLocal(dir string, artifacts map[string]*Artifact) error {
	base := filepath.Join(dir, "apis")
	for _, key := range sortedKeys(artifacts) {
		a := artifacts[key]
		apiID, diagID, ok := strings.Cut(a.ID, "/")
		contract.Requiref(ok, "id", "api diagnostic id %q must be <api>/<diagnostic>", a.ID)
		apiDir := findNamedSubdir(base, apiID)
		if apiDir == "" {
			apiDir = filepath.Join(base, apiID)
		}
		props := copyProps(a.Properties)
		props["id"] = fmt.Sprintf("/apis/%s/diagnostics/%s", apiID, diagID)
		if err := writeJSONFile(filepath.Join(apiDir, "diagnostics", diagID+".json"), props); err != nil {
			return err
		}
	}
	return nil
}

func (k *apiDiagnosticKind) RESTPayload(a *Artifact) interface{} {
	return map[string]interface{}{"properties": copyProps(a.Properties, "id")}
}

func (k *apiDiagnosticKind) ResourcePath(id string) string {
	apiID, diagID, ok := strings.Cut(id, "/")
	contract.Requiref(ok, "id", "api diagnostic id %q must be <api>/<diagnostic>", id)
	return fmt.Sprintf("/apis/%s/diagnostics/%s", apiID, diagID)
}
