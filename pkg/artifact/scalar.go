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
	"strings"

	"github.com/pkg/errors"
)

// scalarKind covers every kind that is one properties document per resource,
// whether stored as a flat "<id>.json" file or as a per-resource directory
// with an information file. The differences between the kinds are data.
type scalarKind struct {
	name        string
	subdir      string
	restSegment string

	// infoFile enables the per-resource directory layout on read; readFlat
	// additionally (or exclusively) accepts "<id>.json" files. writeDir
	// selects which of the two layouts WriteLocal produces.
	infoFile  string
	readFlat  bool
	writeDir  bool
	stripRefs []string // cross-reference fields dropped from the REST payload

	// policy fragments carry an inline "policy" field that is always
	// externalized to a policy.xml sidecar on write.
	externalizePolicy bool
}

func (k *scalarKind) Name() string { return k.name }

func (k *scalarKind) ReadLocal(dir string) (map[string]*Artifact, error) {
	base := filepath.Join(dir, k.subdir)
	artifacts := map[string]*Artifact{}
	if !isDir(base) {
		return artifacts, nil
	}
	entries, err := readDirSorted(base)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		var props map[string]interface{}
		var baseDir, fallback string
		switch {
		case entry.IsDir() && k.infoFile != "":
			infoPath := filepath.Join(base, entry.Name(), k.infoFile)
			if !isFile(infoPath) {
				continue
			}
			if props, err = readJSONObject(infoPath); err != nil {
				return nil, err
			}
			baseDir = filepath.Join(base, entry.Name())
			fallback = entry.Name()
		case !entry.IsDir() && k.readFlat && strings.HasSuffix(entry.Name(), ".json"):
			if props, err = readJSONObject(filepath.Join(base, entry.Name())); err != nil {
				return nil, err
			}
			baseDir = base
			fallback = strings.TrimSuffix(entry.Name(), ".json")
		default:
			continue
		}
		props = ResolveRefs(props, baseDir)
		id := extractID(props, fallback)
		a := &Artifact{Kind: k.name, ID: id, Properties: props}
		if a.Hash, err = Hash(props); err != nil {
			return nil, err
		}
		artifacts[a.Key()] = a
	}
	return artifacts, nil
}

func (k *scalarKind) ReadLive(ctx context.Context, client RESTClient) (map[string]*Artifact, error) {
	items, err := client.List(ctx, "/"+k.restSegment)
	if err != nil {
		return nil, errors.WithMessagef(err, "listing %s", k.restSegment)
	}
	artifacts := map[string]*Artifact{}
	for _, item := range items {
		id, _ := item["name"].(string)
		if id == "" {
			continue
		}
		props := itemProperties(item)
		a := &Artifact{Kind: k.name, ID: id, Properties: props}
		if a.Hash, err = Hash(props); err != nil {
			return nil, err
		}
		artifacts[a.Key()] = a
	}
	return artifacts, nil
}

func (k *scalarKind) WriteLocal(dir string, artifacts map[string]*Artifact) error {
	base := filepath.Join(dir, k.subdir)
	for _, key := range sortedKeys(artifacts) {
		a := artifacts[key]
		props := copyProps(a.Properties)
		props["id"] = "/" + k.restSegment + "/" + a.ID

		var infoPath string
		if k.writeDir {
			infoPath = filepath.Join(base, a.ID, k.infoFile)
		} else {
			infoPath = filepath.Join(base, a.ID+".json")
		}

		if k.externalizePolicy {
			if policy, ok := props["policy"].(string); ok && policy != "" {
				if err := writeTextFile(filepath.Join(filepath.Dir(infoPath), "policy.xml"), policy); err != nil {
					return err
				}
				delete(props, "policy")
				props["$ref-policy"] = "policy.xml"
			}
		}
		if err := writeJSONFile(infoPath, props); err != nil {
			return err
		}
	}
	return nil
}

func (k *scalarKind) RESTPayload(a *Artifact) interface{} {
	strip := append([]string{"id"}, k.stripRefs...)
	return map[string]interface{}{"properties": copyProps(a.Properties, strip...)}
}

func (k *scalarKind) ResourcePath(id string) string {
	return "/" + k.restSegment + "/" + id
}

func itemProperties(item map[string]interface{}) map[string]interface{} {
	if props, ok := item["properties"].(map[string]interface{}); ok {
		return props
	}
	return map[string]interface{}{}
}
