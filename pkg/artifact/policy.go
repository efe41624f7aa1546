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
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/apimops/apimops/pkg/util/contract"
)

// parentPolicyKind covers policies scoped to one parent resource: the
// api-level and product-level policy documents, stored as a policy.xml
// sibling of the parent's information file.
type parentPolicyKind struct {
	name            string
	parentSubdir    string
	parentInfoFiles []string
	parentSegment   string
	suffixLookup    bool
}

func (k *parentPolicyKind) Name() string { return k.name }

func (k *parentPolicyKind) ReadLocal(dir string) (map[string]*Artifact, error) {
	base := filepath.Join(dir, k.parentSubdir)
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
		parentDir := filepath.Join(base, entry.Name())
		parentID, ok, err := parentIDFromInfo(parentDir, entry.Name(), k.parentInfoFiles)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		policyPath := filepath.Join(parentDir, "policy.xml")
		if !isFile(policyPath) {
			continue
		}
		a, err := policyArtifact(k.name, parentID, policyPath)
		if err != nil {
			return nil, err
		}
		artifacts[a.Key()] = a
	}
	return artifacts, nil
}

func (k *parentPolicyKind) ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error) {
	parents, err := client.List(ctx, "/"+k.parentSegment)
	if err != nil {
		return nil, errors.WithMessagef(err, "listing %s", k.parentSegment)
	}
	artifacts := map[string]*Artifact{}
	for _, parent := range parents {
		parentID, _ := parent["name"].(string)
		if parentID == "" {
			continue
		}
		data, err := client.Get(ctx, fmt.Sprintf("/%s/%s/policies/policy", k.parentSegment, parentID))
		if err != nil {
			if isNotFound(err) {
				continue // no policy on this parent
			}
			return nil, errors.WithMessagef(err, "reading policy for %s %s", k.parentSegment, parentID)
		}
		props := itemProperties(data)
		a := &Artifact{Kind: k.name, ID: parentID, Properties: props}
		if a.Hash, err = Hash(props); err != nil {
			return nil, err
		}
		artifacts[a.Key()] = a
	}
	return artifacts, nil
}

func (k *parentPolicyKind) WriteLocal(dir string, artifacts map[string]*Artifact) error {
	base := filepath.Join(dir, k.parentSubdir)
	for _, key := range sortedKeys(artifacts) {
		a := artifacts[key]
		parentDir := ""
		if k.suffixLookup {
			parentDir = findNamedSubdir(base, a.ID)
		}
		if parentDir == "" {
			parentDir = filepath.Join(base, a.ID)
		}
		content, _ := a.Properties["value"].(string)
		if err := writeTextFile(filepath.Join(parentDir, "policy.xml"), content); err != nil {
			return err
		}
	}
	return nil
}

func (k *parentPolicyKind) RESTPayload(a *Artifact) interface{} {
	return map[string]interface{}{"properties": a.Properties}
}

func (k *parentPolicyKind) ResourcePath(id string) string {
	return fmt.Sprintf("/%s/%s/policies/policy", k.parentSegment, id)
}

// operationPolicyKind is the policy attached to a single API operation,
// stored as "<opId>/policy.xml" directly under the API directory.
type operationPolicyKind struct{}

func (k *operationPolicyKind) Name() string { return "api_operation_policy" }

func (k *operationPolicyKind) ReadLocal(dir string) (map[string]*Artifact, error) {
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
		opEntries, err := readDirSorted(apiDir)
		if err != nil {
			return nil, err
		}
		for _, opEntry := range opEntries {
			if !opEntry.IsDir() {
				continue
			}
			policyPath := filepath.Join(apiDir, opEntry.Name(), "policy.xml")
			if !isFile(policyPath) {
				continue
			}
			a, err := policyArtifact(k.Name(), apiID+"/"+opEntry.Name(), policyPath)
			if err != nil {
				return nil, err
			}
			artifacts[a.Key()] = a
		}
	}
	return artifacts, nil
}

func (k *operationPolicyKind) ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error) {
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
		ops, err := client.List(ctx, "/apis/"+apiID+"/operations")
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, errors.WithMessagef(err, "listing operations for api %s", apiID)
		}
		for _, op := range ops {
			opID, _ := op["name"].(string)
			if opID == "" {
				continue
			}
			data, err := client.Get(ctx, fmt.Sprintf("/apis/%s/operations/%s/policies/policy", apiID, opID))
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return nil, errors.WithMessagef(err, "reading policy for operation %s/%s", apiID, opID)
			}
			props := itemProperties(data)
			a := &Artifact{Kind: k.Name(), ID: apiID + "/" + opID, Properties: props}
			if a.Hash, err = Hash(props); err != nil {
				return nil, err
			}
			artifacts[a.Key()] = a
		}
	}
	return artifacts, nil
}

func (k *operationPolicyKind) WriteLocal(dir string, artifacts map[string]*Artifact) error {
	base := filepath.Join(dir, "apis")
	for _, key := range sortedKeys(artifacts) {
		a := artifacts[key]
		apiID, opID, ok := strings.Cut(a.ID, "/")
		contract.Requiref(ok, "id", "operation policy id %q must be <api>/<operation>", a.ID)
		apiDir := findNamedSubdir(base, apiID)
		if apiDir == "" {
			apiDir = filepath.Join(base, apiID)
		}
		content, _ := a.Properties["value"].(string)
		if err := writeTextFile(filepath.Join(apiDir, opID, "policy.xml"), content); err != nil {
			return err
		}
	}
	return nil
}

func (k *operationPolicyKind) RESTPayload(a *Artifact) interface{} {
	return map[string]interface{}{"properties": a.Properties}
}

func (k *operationPolicyKind) ResourcePath(id string) string {
	apiID, opID, ok := strings.Cut(id, "/")
	contract.Requiref(ok, "id", "operation policy id %q must be <api>/<operation>", id)
	return fmt.Sprintf("/apis/%s/operations/%s/policies/policy", apiID, opID)
}

// servicePolicyKind is the single service-global policy document. The id is
// the fixed "policy".
type servicePolicyKind struct{}

func (k *servicePolicyKind) Name() string { return "service_policy" }

func (k *servicePolicyKind) ReadLocal(dir string) (map[string]*Artifact, error) {
	artifacts := map[string]*Artifact{}
	for _, candidate := range []string{
		filepath.Join(dir, "policy", "policy.xml"),
		filepath.Join(dir, "policy.xml"),
	} {
		if !isFile(candidate) {
			continue
		}
		a, err := policyArtifact(k.Name(), "policy", candidate)
		if err != nil {
			return nil, err
		}
		artifacts[a.Key()] = a
		break
	}
	return artifacts, nil
}

func (k *servicePolicyKind) ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error) {
	artifacts := map[string]*Artifact{}
	data, err := client.Get(ctx, "/policies/policy")
	if err != nil {
		if isNotFound(err) {
			return artifacts, nil // no global policy set
		}
		return nil, errors.WithMessage(err, "reading service policy")
	}
	props := itemProperties(data)
	a := &Artifact{Kind: k.Name(), ID: "policy", Properties: props}
	if a.Hash, err = Hash(props); err != nil {
		return nil, err
	}
	artifacts[a.Key()] = a
	return artifacts, nil
}

func (k *servicePolicyKind) WriteLocal(dir string, artifacts map[string]*Artifact) error {
	for _, key := range sortedKeys(artifacts) {
		content, _ := artifacts[key].Properties["value"].(string)
		if err := writeTextFile(filepath.Join(dir, "policy", "policy.xml"), content); err != nil {
			return err
		}
	}
	return nil
}

func (k *servicePolicyKind) RESTPayload(a *Artifact) interface{} {
	return map[string]interface{}{"properties": a.Properties}
}

func (k *servicePolicyKind) ResourcePath(string) string {
	return "/policies/policy"
}

// parentIDFromInfo resolves a parent resource's id from the first information
// file present in its directory.
func parentIDFromInfo(parentDir, dirName string, infoFiles []string) (string, bool, error) {
	for _, name := range infoFiles {
		infoPath := filepath.Join(parentDir, name)
		if !isFile(infoPath) {
			continue
		}
		info, err := readJSONObject(infoPath)
		if err != nil {
			return "", false, err
		}
		return extractID(info, dirName), true, nil
	}
	return "", false, nil
}

func policyArtifact(kind, id, path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	props := map[string]interface{}{
		"format": "rawxml",
		"value":  string(data),
	}
	a := &Artifact{Kind: kind, ID: id, Properties: props}
	if a.Hash, err = Hash(props); err != nil {
		return nil, err
	}
	return a, nil
}
