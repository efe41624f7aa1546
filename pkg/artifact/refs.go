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
	"strings"

	"github.com/apimops/apimops/pkg/util/logging"
)

const (
	refPrefix  = "$ref-"
	refsPrefix = "$refs-"
)

// ResolveRefs recursively inlines sibling-file references into a property
// tree. A "$ref-<name>" key whose value names an existing file relative to
// baseDir becomes "<name>" mapped to the file's raw text; "$refs-<name>" is
// the same except the file is parsed as JSON. An unresolved reference keeps
// the literal path string under "<name>"; state hashes computed before a
// reference broke depend on this, so it must not become an error.
func ResolveRefs(props map[string]interface{}, baseDir string) map[string]interface{} {
	resolved := make(map[string]interface{}, len(props))
	for key, value := range props {
		switch {
		case strings.HasPrefix(key, refPrefix):
			resolved[strings.TrimPrefix(key, refPrefix)] = resolveOne(key, value, baseDir, false)
		case strings.HasPrefix(key, refsPrefix):
			resolved[strings.TrimPrefix(key, refsPrefix)] = resolveOne(key, value, baseDir, true)
		default:
			resolved[key] = resolveValue(value, baseDir)
		}
	}
	return resolved
}

func resolveValue(value interface{}, baseDir string) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return ResolveRefs(v, baseDir)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out[i] = ResolveRefs(m, baseDir)
			} else {
				out[i] = item
			}
		}
		return out
	default:
		return value
	}
}

func resolveOne(key string, value interface{}, baseDir string, parseJSON bool) interface{} {
	rel, ok := value.(string)
	if !ok {
		return value
	}
	path := filepath.Join(baseDir, rel)
	data, err := os.ReadFile(path)
	if err != nil {
		// Preserved behavior: a broken reference degrades to its path string.
		logging.V(5).Infof("reference %s -> %s not resolvable: %v", key, path, err)
		return value
	}
	if parseJSON {
		var parsed interface{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			logging.V(5).Infof("reference %s -> %s is not valid JSON: %v", key, path, err)
			return value
		}
		return parsed
	}
	return string(data)
}
