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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// readJSONObject reads and parses a JSON file that must hold an object.
func readJSONObject(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var props map[string]interface{}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return props, nil
}

// readJSONValue reads and parses a JSON file of any shape (sidecar id arrays).
func readJSONValue(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return v, nil
}

// writeJSONFile writes an indented JSON document with a trailing newline.
func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func writeTextFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// extractID returns the short logical id from an id path property, falling
// back to the given name when the property is absent.
//
//	"/apis/echo-api"                  -> "echo-api"
//	"/apis/echo-api/operations/get"   -> "get"
func extractID(props map[string]interface{}, fallback string) string {
	idPath, ok := props["id"].(string)
	if !ok || idPath == "" {
		return fallback
	}
	return lastSegment(idPath)
}

func lastSegment(idPath string) string {
	trimmed := strings.TrimRight(idPath, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// readDirSorted lists a directory; os.ReadDir already sorts by filename,
// which is what keeps enumeration order deterministic.
func readDirSorted(path string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", path)
	}
	return entries, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// findNamedSubdir locates a per-resource directory under base by exact id
// match or by the "<displayName>_<id>" suffix convention.
func findNamedSubdir(base, id string) string {
	entries, err := os.ReadDir(base)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if entry.Name() == id || strings.HasSuffix(entry.Name(), "_"+id) {
			return filepath.Join(base, entry.Name())
		}
	}
	return ""
}

// copyProps returns a shallow copy with the listed keys removed.
func copyProps(props map[string]interface{}, strip ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	for _, k := range strip {
		delete(out, k)
	}
	return out
}

// sortedKeys yields artifact keys in lexicographic order for deterministic
// writes and payload generation.
func sortedKeys(artifacts map[string]*Artifact) []string {
	keys := make([]string, 0, len(artifacts))
	for k := range artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// idStrings normalizes a sidecar id array: entries are plain strings or
// objects carrying an "id" path.
func idStrings(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var ids []string
	for _, item := range list {
		switch e := item.(type) {
		case string:
			ids = append(ids, e)
		case map[string]interface{}:
			if idPath, ok := e["id"].(string); ok {
				ids = append(ids, lastSegment(idPath))
			}
		}
	}
	return ids
}
