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

package engine

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/state"
)

// Summary counts a plan's changes by action.
type Summary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
	Noop   int `json:"noop"`
}

// TargetCoords identifies the service instance a plan was computed against.
type TargetCoords struct {
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`
	ServiceName    string `json:"service_name"`
}

// Plan is the serializable outcome of a plan run: the full change list in
// key order (including noops) plus a summary.
type Plan struct {
	GeneratedAt  time.Time    `json:"generated_at"`
	SourceDir    string       `json:"source_dir"`
	TargetCoords TargetCoords `json:"target_coords"`
	Summary      Summary      `json:"summary"`
	Changes      []Change     `json:"changes"`
}

// NewPlan reads every registered kind from sourceDir, diffs against the
// state document, and returns the plan. A non-empty only set restricts both
// the local read and the state side of the diff to those kinds.
func NewPlan(sourceDir string, st *state.State, coords TargetCoords, only map[string]bool) (*Plan, error) {
	local := map[string]*artifact.Artifact{}
	for _, kind := range artifact.Registry {
		if only != nil && !only[kind.Name()] {
			continue
		}
		artifacts, err := kind.ReadLocal(sourceDir)
		if err != nil {
			return nil, errors.WithMessagef(err, "reading %s artifacts", kind.Name())
		}
		for key, a := range artifacts {
			local[key] = a
		}
	}

	stateArtifacts := map[string]*state.Artifact{}
	if st != nil {
		for key, a := range st.Artifacts {
			if only != nil && !only[a.Kind] {
				continue
			}
			stateArtifacts[key] = a
		}
	}

	changes := Diff(local, stateArtifacts)
	p := &Plan{
		GeneratedAt:  time.Now().UTC(),
		SourceDir:    sourceDir,
		TargetCoords: coords,
		Changes:      changes,
	}
	for _, c := range changes {
		switch c.Action {
		case ActionCreate:
			p.Summary.Create++
		case ActionUpdate:
			p.Summary.Update++
		case ActionDelete:
			p.Summary.Delete++
		case ActionNoop:
			p.Summary.Noop++
		}
	}
	return p, nil
}

// HasChanges reports whether the plan contains any non-noop change.
func (p *Plan) HasChanges() bool {
	return p.Summary.Create+p.Summary.Update+p.Summary.Delete > 0
}

// Order returns the plan's actionable changes in execution order: creates
// and updates forward by registry position, then deletes in reverse. Ties
// within a kind break on key so the order is total. Noops are dropped.
func (p *Plan) Order() []Change {
	var forward, backward []Change
	for _, c := range p.Changes {
		switch c.Action {
		case ActionCreate, ActionUpdate:
			forward = append(forward, c)
		case ActionDelete:
			backward = append(backward, c)
		}
	}
	sort.SliceStable(forward, func(i, j int) bool {
		oi, oj := artifact.OrderIndex(forward[i].Kind), artifact.OrderIndex(forward[j].Kind)
		if oi != oj {
			return oi < oj
		}
		return forward[i].Key < forward[j].Key
	})
	sort.SliceStable(backward, func(i, j int) bool {
		oi, oj := artifact.OrderIndex(backward[i].Kind), artifact.OrderIndex(backward[j].Kind)
		if oi != oj {
			return oi > oj
		}
		return backward[i].Key < backward[j].Key
	})
	return append(forward, backward...)
}

// Save writes the plan as indented JSON.
func (p *Plan) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding plan")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing plan to %s", path)
	}
	return nil
}

// LoadPlan reads a plan previously written by Save.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading plan %s", path)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "parsing plan %s", path)
	}
	return &p, nil
}
