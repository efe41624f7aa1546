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
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/apimops/apimops/pkg/apim"
	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/state"
	"github.com/apimops/apimops/pkg/util/contract"
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

// Apply executes the plan's changes in execution order. State is written
// after every successful change, so an interrupted or failed apply leaves an
// accurate record of what landed. The first failure stops the loop; the
// returned counts let the caller report partial progress.
func Apply(ctx context.Context, p *Plan, client artifact.RESTClient, backend state.Backend, st *state.State, out io.Writer) (int, int, error) {
	ordered := p.Order()
	if len(ordered) == 0 {
		fmt.Fprintf(out, "\nNo changes to apply.\n\n")
		return 0, 0, nil
	}

	total := len(ordered)
	succeeded := 0
	fmt.Fprintf(out, "\nApplying changes...\n\n")

	for i, change := range ordered {
		fmt.Fprintf(out, "  [%d/%d] %s %s %q", i+1, total, actionSymbol(change.Action), kindLabel(change.Kind), change.DisplayName)

		if err := applyChange(ctx, change, client); err != nil {
			msg := formatApplyError(err)
			fmt.Fprintf(out, "  %s ERROR: %s\n", crossMark, msg)
			fmt.Fprintf(out, "\nApply failed. %d of %d changes applied successfully.\n", succeeded, total)
			fmt.Fprintf(out, "State file updated. Re-run 'plan' to see remaining changes.\n\n")
			return succeeded, total, errors.New(msg)
		}

		updateState(change, st)
		if err := backend.Write(ctx, st); err != nil {
			fmt.Fprintf(out, "  %s ERROR: %v\n", crossMark, err)
			return succeeded, total, errors.WithMessage(err, "persisting state")
		}
		fmt.Fprintf(out, "  %s\n", checkMark)
		succeeded++
	}

	st.StampApplied(time.Now())
	if err := backend.Write(ctx, st); err != nil {
		return succeeded, total, errors.WithMessage(err, "persisting state")
	}
	fmt.Fprintf(out, "\nApply complete! %d changes applied successfully.\n\n", succeeded)
	return succeeded, total, nil
}

// applyChange issues the REST mutations for one change: a PUT (plus trailing
// operation PUTs for composite kinds) or a DELETE.
func applyChange(ctx context.Context, change Change, client artifact.RESTClient) error {
	kind := artifact.ByName(change.Kind)
	contract.Assertf(kind != nil, "change %s has unregistered kind %s", change.Key, change.Kind)

	switch change.Action {
	case ActionCreate, ActionUpdate:
		a := change.New
		if _, err := client.Put(ctx, kind.ResourcePath(a.ID), kind.RESTPayload(a)); err != nil {
			return err
		}
		if provider, ok := kind.(artifact.OperationProvider); ok {
			for _, op := range provider.OperationPayloads(a) {
				path := fmt.Sprintf("/apis/%s/operations/%s", a.ID, op.ID)
				if _, err := client.Put(ctx, path, op.Body); err != nil {
					return err
				}
			}
		}
		return nil
	case ActionDelete:
		return client.Delete(ctx, kind.ResourcePath(change.Old.ID))
	default:
		contract.Failf("unexpected action %s in execution order", change.Action)
		return nil
	}
}

// updateState mutates the state document to reflect one successful change.
func updateState(change Change, st *state.State) {
	switch change.Action {
	case ActionCreate, ActionUpdate:
		a := change.New
		st.Artifacts[change.Key] = &state.Artifact{
			Kind:       a.Kind,
			ID:         a.ID,
			Hash:       a.Hash,
			Properties: a.Properties,
		}
	case ActionDelete:
		delete(st.Artifacts, change.Key)
	}
}

// formatApplyError renders a failed change's error with its transient or
// permanent label, the control-plane error code, and the request id for
// support tickets.
func formatApplyError(err error) string {
	apiErr, ok := apim.AsError(err)
	if !ok {
		return err.Error()
	}
	label := "Permanent error"
	if apiErr.Transient {
		label = "Transient error (exhausted retries)"
	}
	msg := label + ": " + apiErr.Message
	if apiErr.Code != "" {
		msg += " [" + apiErr.Code + "]"
	}
	if apiErr.RequestID != "" {
		msg += " (req-id: " + apiErr.RequestID + ")"
	}
	return msg
}

// ApplyForce pushes every local artifact regardless of the state diff,
// rebuilding state from scratch. Used when state has drifted from manual
// changes; failures are collected rather than stopping the walk.
func ApplyForce(ctx context.Context, sourceDir string, client artifact.RESTClient, backend state.Backend, st *state.State, only map[string]bool, out io.Writer) (int, int, error) {
	st.Artifacts = map[string]*state.Artifact{}
	total, succeeded := 0, 0
	var errs *multierror.Error

	fmt.Fprintf(out, "\nForce apply: pushing ALL artifacts...\n\n")

	for _, kind := range artifact.Registry {
		if only != nil && !only[kind.Name()] {
			continue
		}
		artifacts, err := kind.ReadLocal(sourceDir)
		if err != nil {
			return succeeded, total, errors.WithMessagef(err, "reading %s artifacts", kind.Name())
		}
		for _, key := range sortedChangeKeys(artifacts) {
			a := artifacts[key]
			total++
			fmt.Fprintf(out, "  + %s %q", kindLabel(a.Kind), a.DisplayName())

			if err := pushArtifact(ctx, kind, a, client); err != nil {
				msg := formatApplyError(err)
				fmt.Fprintf(out, "  %s ERROR: %s\n", crossMark, msg)
				errs = multierror.Append(errs, fmt.Errorf("%s %q: %s", kindLabel(a.Kind), a.DisplayName(), msg))
				continue
			}

			st.Artifacts[key] = &state.Artifact{Kind: a.Kind, ID: a.ID, Hash: a.Hash, Properties: a.Properties}
			if err := backend.Write(ctx, st); err != nil {
				return succeeded, total, errors.WithMessage(err, "persisting state")
			}
			fmt.Fprintf(out, "  %s\n", checkMark)
			succeeded++
		}
	}

	st.StampApplied(time.Now())
	if err := backend.Write(ctx, st); err != nil {
		return succeeded, total, errors.WithMessage(err, "persisting state")
	}

	if errs.ErrorOrNil() != nil {
		fmt.Fprintf(out, "\nForce apply completed with errors. %d/%d succeeded.\n\n", succeeded, total)
		return succeeded, total, errs.ErrorOrNil()
	}
	fmt.Fprintf(out, "\nForce apply complete! %d artifacts pushed.\n\n", succeeded)
	return succeeded, total, nil
}

func pushArtifact(ctx context.Context, kind artifact.Kind, a *artifact.Artifact, client artifact.RESTClient) error {
	if _, err := client.Put(ctx, kind.ResourcePath(a.ID), kind.RESTPayload(a)); err != nil {
		return err
	}
	if provider, ok := kind.(artifact.OperationProvider); ok {
		for _, op := range provider.OperationPayloads(a) {
			path := fmt.Sprintf("/apis/%s/operations/%s", a.ID, op.ID)
			if _, err := client.Put(ctx, path, op.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedChangeKeys(artifacts map[string]*artifact.Artifact) []string {
	keys := make([]string, 0, len(artifacts))
	for key := range artifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func actionSymbol(action Action) string {
	switch action {
	case ActionCreate:
		return "+"
	case ActionUpdate:
		return "~"
	case ActionDelete:
		return "-"
	default:
		return "."
	}
}

// kindLabel renders a kind name for humans, e.g. "named value".
func kindLabel(kind string) string {
	return strings.ReplaceAll(kind, "_", " ")
}
