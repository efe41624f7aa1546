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
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/apimops/apimops/pkg/util/contract"
)

// associationKind models a many-to-many edge as a first-class artifact with
// the synthetic compound id "<parent>/<child>". Locally the edges live in a
// sidecar id array inside the parent's directory (with an optional inline
// fallback list in the parent's information file).
type associationKind struct {
	name string

	parentSubdir    string
	parentInfoFiles []string // first match wins; empty slice means id = dir name
	infoOptional    bool     // parent info file may be absent (gateway dirs)
	sidecarFile     string   // "apis.json", "groups.json", "tags.json"
	inlineProp      string   // fallback list property in the parent info file

	parentProp, childProp       string // property names carrying the endpoint ids
	parentSegment, childSegment string // REST path segments

	// The gateway/api edge is created with a provisioningState body; every
	// other edge PUTs an empty object. Preserved per kind; see the
	// compatibility note in DESIGN.md before unifying.
	provisioning bool

	// api parents are found by the "<displayName>_<id>" suffix convention.
	suffixLookup bool
}

func (k *associationKind) Name() string { return k.name }

func (k *associationKind) ReadLocal(dir string) (map[string]*Artifact, error) {
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
		parentID, info, ok, err := k.parentIdentity(parentDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		var children []string
		sidecar := filepath.Join(parentDir, k.sidecarFile)
		switch {
		case isFile(sidecar):
			v, err := readJSONValue(sidecar)
			if err != nil {
				return nil, err
			}
			children = idStrings(v)
		case k.inlineProp != "" && info != nil:
			children = idStrings(info[k.inlineProp])
		}

		for _, childID := range children {
			a, err := k.newEdge(parentID, childID)
			if err != nil {
				return nil, err
			}
			artifacts[a.Key()] = a
		}
	}
	return artifacts, nil
}

func (k *associationKind) parentIdentity(parentDir, dirName string) (string, map[string]interface{}, bool, error) {
	for _, name := range k.parentInfoFiles {
		infoPath := filepath.Join(parentDir, name)
		if !isFile(infoPath) {
			continue
		}
		info, err := readJSONObject(infoPath)
		if err != nil {
			return "", nil, false, err
		}
		return extractID(info, dirName), info, true, nil
	}
	if k.infoOptional || len(k.parentInfoFiles) == 0 {
		return dirName, nil, true, nil
	}
	return "", nil, false, nil
}

func (k *associationKind) newEdge(parentID, childID string) (*Artifact, error) {
	props := map[string]interface{}{
		k.parentProp: parentID,
		k.childProp:  childID,
	}
	a := &Artifact{Kind: k.name, ID: parentID + "/" + childID, Properties: props}
	hash, err := Hash(props)
	if err != nil {
		return nil, err
	}
	a.Hash = hash
	return a, nil
}

func (k *associationKind) ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error) {
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
		children, err := client.List(ctx, fmt.Sprintf("/%s/%s/%s", k.parentSegment, parentID, k.childSegment))
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, errors.WithMessagef(err, "listing %s for %s %s", k.childSegment, k.parentSegment, parentID)
		}
		for _, child := range children {
			childID, _ := child["name"].(string)
			if childID == "" {
				continue
			}
			a, err := k.newEdge(parentID, childID)
			if err != nil {
				return nil, err
			}
			artifacts[a.Key()] = a
		}
	}
	return artifacts, nil
}

func (k *associationKind) WriteLocal(dir string, artifacts map[string]*Artifact) error {
	base := filepath.Join(dir, k.parentSubdir)
	byParent := map[string][]string{}
	for _, a := range artifacts {
		parentID, _ := a.Properties[k.parentProp].(string)
		childID, _ := a.Properties[k.childProp].(string)
		byParent[parentID] = append(byParent[parentID], childID)
	}
	parents := make([]string, 0, len(byParent))
	for parentID := range byParent {
		parents = append(parents, parentID)
	}
	sort.Strings(parents)
	for _, parentID := range parents {
		parentDir := ""
		if k.suffixLookup {
			parentDir = findNamedSubdir(base, parentID)
		}
		if parentDir == "" {
			parentDir = filepath.Join(base, parentID)
		}
		children := byParent[parentID]
		sort.Strings(children)
		if err := writeJSONFile(filepath.Join(parentDir, k.sidecarFile), children); err != nil {
			return err
		}
	}
	return nil
}

func (k *associationKind) RESTPayload(a *Artifact) interface{} {
	if k.provisioning {
		return map[string]interface{}{
			"properties": map[string]interface{}{"provisioningState": "created"},
		}
	}
	return map[string]interface{}{}
}

func (k *associationKind) ResourcePath(id string) string {
	parentID, childID, ok := strings.Cut(id, "/")
	contract.Requiref(ok, "id", "association id %q must be <parent>/<child>", id)
	return fmt.Sprintf("/%s/%s/%s/%s", k.parentSegment, parentID, k.childSegment, childID)
}
