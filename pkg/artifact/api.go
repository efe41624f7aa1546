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
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// apiInfoFiles are the recognized API information file names; the first is
// the current layout, the second the legacy one.
var apiInfoFiles = []string{"apiInformation.json", "configuration.json"}

// specFileNames are the recognized specification documents inside an API
// directory, in lookup order.
var specFileNames = []string{
	"specification.json",
	"specification.yaml",
	"specification.yml",
	"specification.wsdl",
	"specification.wadl",
	"specification.graphql",
}

// reservedAPIFiles share the legacy API directory namespace with operation
// JSON files and must never be read as operations.
var reservedAPIFiles = map[string]bool{
	"apiInformation.json": true,
	"configuration.json":  true,
	"tags.json":           true,
}

// apiKind is the composite kind: an API, its specification document and its
// operations reconcile as one atomic unit. The hashable view is the triple
// {apiInfo, spec, operations}, so any operation change reshapes the parent
// hash even when the information file is untouched.
type apiKind struct{}

func (k *apiKind) Name() string { return "api" }

func (k *apiKind) ReadLocal(dir string) (map[string]*Artifact, error) {
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
		var props map[string]interface{}
		found := false
		for _, name := range apiInfoFiles {
			infoPath := filepath.Join(apiDir, name)
			if !isFile(infoPath) {
				continue
			}
			if props, err = readJSONObject(infoPath); err != nil {
				return nil, err
			}
			found = true
			break
		}
		if !found {
			continue
		}
		props = ResolveRefs(props, apiDir)
		apiID := extractID(props, entry.Name())

		spec, err := readSpecFile(apiDir)
		if err != nil {
			return nil, err
		}
		operations, err := readOperations(apiDir)
		if err != nil {
			return nil, err
		}

		a := &Artifact{
			Kind:       k.Name(),
			ID:         apiID,
			Properties: props,
			Spec:       spec,
			Operations: operations,
		}
		if a.Hash, err = compositeHash(props, spec, operations); err != nil {
			return nil, err
		}
		artifacts[a.Key()] = a
	}
	return artifacts, nil
}

func (k *apiKind) ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error) {
	items, err := client.List(ctx, "/apis")
	if err != nil {
		return nil, errors.WithMessage(err, "listing apis")
	}
	artifacts := map[string]*Artifact{}
	for _, item := range items {
		apiID, _ := item["name"].(string)
		if apiID == "" {
			continue
		}
		props := itemProperties(item)

		operations := map[string]map[string]interface{}{}
		ops, err := client.List(ctx, "/apis/"+apiID+"/operations")
		if err != nil {
			if !isNotFound(err) {
				return nil, errors.WithMessagef(err, "listing operations for api %s", apiID)
			}
		} else {
			for _, op := range ops {
				opID, _ := op["name"].(string)
				if opID == "" {
					continue
				}
				operations[opID] = itemProperties(op)
			}
		}

		a := &Artifact{
			Kind:       k.Name(),
			ID:         apiID,
			Properties: props,
			Operations: operations,
		}
		if a.Hash, err = compositeHash(props, nil, operations); err != nil {
			return nil, err
		}
		artifacts[a.Key()] = a
	}
	return artifacts, nil
}

func (k *apiKind) WriteLocal(dir string, artifacts map[string]*Artifact) error {
	base := filepath.Join(dir, "apis")
	for _, key := range sortedKeys(artifacts) {
		a := artifacts[key]
		dirName := a.ID
		if display := a.DisplayName(); display != a.ID {
			dirName = display + "_" + a.ID
		}
		dirName = strings.NewReplacer("/", "_", "\\", "_").Replace(dirName)
		apiDir := filepath.Join(base, dirName)

		props := copyProps(a.Properties)
		props["id"] = "/apis/" + a.ID
		if err := writeJSONFile(filepath.Join(apiDir, "apiInformation.json"), props); err != nil {
			return err
		}

		if a.Spec != nil && a.Spec.Path != "" {
			if err := writeTextFile(filepath.Join(apiDir, a.Spec.Path), a.Spec.Content); err != nil {
				return err
			}
		}

		for opID, opProps := range a.Operations {
			out := copyProps(opProps, "policy")
			out["id"] = "/apis/" + a.ID + "/operations/" + opID
			if err := writeJSONFile(filepath.Join(apiDir, opID+".json"), out); err != nil {
				return err
			}
		}
	}
	return nil
}

// RESTPayload builds the API PUT body; a present specification document is
// sent as an import via the format/value property pair.
func (k *apiKind) RESTPayload(a *Artifact) interface{} {
	props := copyProps(a.Properties, "id")
	if a.Spec != nil {
		props["format"] = a.Spec.Format
		props["value"] = a.Spec.Content
	}
	return map[string]interface{}{"properties": props}
}

// OperationPayloads returns the operation PUTs issued after the parent API
// succeeds, in operation-id order. The engine-managed id and policy fields
// are not part of the operation schema and are stripped.
func (k *apiKind) OperationPayloads(a *Artifact) []OperationPayload {
	ids := make([]string, 0, len(a.Operations))
	for opID := range a.Operations {
		ids = append(ids, opID)
	}
	sort.Strings(ids)
	payloads := make([]OperationPayload, 0, len(ids))
	for _, opID := range ids {
		payloads = append(payloads, OperationPayload{
			ID:   opID,
			Body: map[string]interface{}{"properties": copyProps(a.Operations[opID], "id", "policy")},
		})
	}
	return payloads
}

func (k *apiKind) ResourcePath(id string) string {
	return "/apis/" + id
}

// compositeHash fingerprints the atomic API unit.
func compositeHash(props map[string]interface{}, spec *Spec, operations map[string]map[string]interface{}) (string, error) {
	var specView interface{}
	if spec != nil {
		specView = map[string]interface{}{
			"format":  spec.Format,
			"content": spec.Content,
			"path":    spec.Path,
		}
	}
	return Hash(map[string]interface{}{
		"apiInfo":    props,
		"spec":       specView,
		"operations": operations,
	})
}

// readSpecFile locates and sniffs the specification document, if any.
func readSpecFile(apiDir string) (*Spec, error) {
	for _, name := range specFileNames {
		path := filepath.Join(apiDir, name)
		if !isFile(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		content := string(data)
		return &Spec{
			Format:  detectSpecFormat(name, content),
			Content: content,
			Path:    name,
		}, nil
	}
	return nil, nil
}

// detectSpecFormat maps a specification file to the management API's import
// format string, distinguishing swagger 2 from OpenAPI 3 by document content.
func detectSpecFormat(name, content string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wsdl":
		return "wsdl"
	case ".wadl":
		return "wadl"
	case ".graphql":
		return "graphql"
	case ".yaml", ".yml":
		var parsed map[string]interface{}
		if err := yaml.Unmarshal([]byte(content), &parsed); err != nil {
			return "openapi"
		}
		if isSwagger2(parsed) {
			return "swagger-link-json"
		}
		return "openapi"
	default:
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return "openapi+json"
		}
		if isSwagger2(parsed) {
			return "swagger-json"
		}
		return "openapi+json"
	}
}

func isSwagger2(doc map[string]interface{}) bool {
	version, _ := doc["swagger"].(string)
	return strings.HasPrefix(version, "2")
}

// readOperations reads an API's operations from disk. The current layout is
// an operations/ directory with one subdirectory per operation; the legacy
// layout stores "<opId>.json" files directly beside apiInformation.json,
// sharing that namespace with the reserved file names, so entries are
// blacklisted by name and must parse to a JSON object before they count as
// operations.
func readOperations(apiDir string) (map[string]map[string]interface{}, error) {
	operations := map[string]map[string]interface{}{}

	opsDir := filepath.Join(apiDir, "operations")
	if isDir(opsDir) {
		entries, err := readDirSorted(opsDir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			opID := entry.Name()
			op := map[string]interface{}{
				"id": "/apis/" + filepath.Base(apiDir) + "/operations/" + opID,
			}
			// The operation policy participates in the composite hash so a
			// policy edit surfaces as a parent API change.
			policyPath := filepath.Join(opsDir, opID, "policy.xml")
			if isFile(policyPath) {
				data, err := os.ReadFile(policyPath)
				if err != nil {
					return nil, errors.Wrapf(err, "reading %s", policyPath)
				}
				op["policy"] = string(data)
			}
			operations[opID] = op
		}
		return operations, nil
	}

	entries, err := readDirSorted(apiDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if reservedAPIFiles[name] || strings.HasPrefix(name, "specification.") {
			continue
		}
		v, err := readJSONValue(filepath.Join(apiDir, name))
		if err != nil {
			return nil, err
		}
		props, ok := v.(map[string]interface{})
		if !ok {
			continue // sidecar arrays and other non-operation JSON
		}
		props = ResolveRefs(props, apiDir)
		opID := extractID(props, strings.TrimSuffix(name, ".json"))
		operations[opID] = props
	}
	return operations, nil
}
