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

// Package engine turns a source tree and a state document into an ordered
// change plan and executes it against the control plane, persisting state
// after every successful change.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/state"
)

// Action is a change's verb.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionNoop   Action = "noop"
)

// Change is one diff entry. New carries the local artifact for creates and
// updates; Old carries the state record for updates and deletes.
type Change struct {
	Action      Action             `json:"action"`
	Key         string             `json:"key"`
	Kind        string             `json:"kind"`
	ID          string             `json:"id"`
	DisplayName string             `json:"display_name"`
	Detail      string             `json:"detail"`
	Old         *state.Artifact    `json:"old,omitempty"`
	New         *artifact.Artifact `json:"new,omitempty"`
}

// Diff compares the local artifact set against the state's, emitting one
// change per key in the union of both, in lexicographic key order. Equal
// hashes produce NOOP entries so callers can report unchanged counts.
func Diff(local map[string]*artifact.Artifact, stateArtifacts map[string]*state.Artifact) []Change {
	keys := map[string]bool{}
	for k := range local {
		keys[k] = true
	}
	for k := range stateArtifacts {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var changes []Change
	for _, key := range sorted {
		l, inLocal := local[key]
		s, inState := stateArtifacts[key]
		switch {
		case inLocal && !inState:
			changes = append(changes, Change{
				Action:      ActionCreate,
				Key:         key,
				Kind:        l.Kind,
				ID:          l.ID,
				DisplayName: l.DisplayName(),
				Detail:      "new",
				New:         l,
			})
		case inState && !inLocal:
			changes = append(changes, Change{
				Action:      ActionDelete,
				Key:         key,
				Kind:        s.Kind,
				ID:          s.ID,
				DisplayName: stateDisplayName(s),
				Detail:      "removed",
				Old:         s,
			})
		case l.Hash != s.Hash:
			changes = append(changes, Change{
				Action:      ActionUpdate,
				Key:         key,
				Kind:        l.Kind,
				ID:          l.ID,
				DisplayName: l.DisplayName(),
				Detail:      diffDetail(s.Properties, l.Properties),
				Old:         s,
				New:         l,
			})
		default:
			changes = append(changes, Change{
				Action:      ActionNoop,
				Key:         key,
				Kind:        l.Kind,
				ID:          l.ID,
				DisplayName: l.DisplayName(),
				Detail:      "unchanged",
				Old:         s,
				New:         l,
			})
		}
	}
	return changes
}

func stateDisplayName(s *state.Artifact) string {
	if name, ok := s.Properties["displayName"].(string); ok && name != "" {
		return name
	}
	if name, ok := s.Properties["name"].(string); ok && name != "" {
		return name
	}
	return s.ID
}

// diffDetail summarizes what changed between two property bags: at most
// three entries, scalars shown as old→new, anything structured as
// "changed <key>".
func diffDetail(oldProps, newProps map[string]interface{}) string {
	keys := map[string]bool{}
	for k := range oldProps {
		keys[k] = true
	}
	for k := range newProps {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var changed []string
	for _, k := range sorted {
		oldVal, inOld := oldProps[k]
		newVal, inNew := newProps[k]
		if inOld && inNew && equalValues(oldVal, newVal) {
			continue
		}
		switch {
		case !inOld:
			changed = append(changed, "added "+k)
		case !inNew:
			changed = append(changed, "removed "+k)
		case isScalar(oldVal) && isScalar(newVal):
			changed = append(changed, fmt.Sprintf("%s %s→%s", k, scalarRepr(oldVal), scalarRepr(newVal)))
		default:
			changed = append(changed, "changed "+k)
		}
	}
	if len(changed) == 0 {
		return "changed"
	}
	if len(changed) > 3 {
		return strings.Join(changed[:3], ", ") + "..."
	}
	return strings.Join(changed, ", ")
}

func equalValues(a, b interface{}) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, float64, int, int64:
		return true
	}
	return false
}

func scalarRepr(v interface{}) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return fmt.Sprintf("%v", v)
}
