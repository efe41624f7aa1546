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
	"time"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/apimops/apimops/pkg/apim"
	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/state"
)

// Extract snapshots the live service into the source tree format under
// outputDir. It is per-kind lenient: a kind that fails to enumerate is
// reported with a transient or permanent label and a rerun hint, and the
// walk continues. The collected errors are returned so the caller can exit
// non-zero, alongside everything that did extract.
func Extract(ctx context.Context, client artifact.RESTClient, outputDir string, only map[string]bool, out io.Writer) (map[string]*artifact.Artifact, error) {
	all := map[string]*artifact.Artifact{}
	var errs *multierror.Error

	for _, kind := range artifact.Registry {
		if only != nil && !only[kind.Name()] {
			continue
		}
		fmt.Fprintf(out, "  Extracting %s...", kindLabel(kind.Name()))

		artifacts, err := kind.ReadLive(ctx, client)
		if err != nil {
			fmt.Fprintf(out, " ERROR: %s\n", formatExtractError(err))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", kind.Name(), err))
			continue
		}
		if len(artifacts) == 0 {
			fmt.Fprintf(out, " none\n")
			continue
		}
		if err := kind.WriteLocal(outputDir, artifacts); err != nil {
			// Local disk failures never resolve on a rerun.
			fmt.Fprintf(out, " ERROR: permanent: %v (fix and re-run)\n", err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", kind.Name(), err))
			continue
		}
		for key, a := range artifacts {
			all[key] = a
		}
		fmt.Fprintf(out, " %d found\n", len(artifacts))
	}

	fmt.Fprintf(out, "\nExtracted %d artifacts to %s\n\n", len(all), outputDir)
	return all, errs.ErrorOrNil()
}

// formatExtractError labels a remote enumeration failure and tells the
// operator what to do about it. Only live-read errors flow here; local write
// failures are labeled permanent at the call site.
func formatExtractError(err error) string {
	if apim.IsTransient(err) {
		if apiErr, ok := apim.AsError(err); ok {
			return fmt.Sprintf("transient: %s (may work on next run)", apiErr.Error())
		}
		return fmt.Sprintf("transient: %v (may work on next run)", err)
	}
	if apiErr, ok := apim.AsError(err); ok {
		return fmt.Sprintf("permanent: %s (fix and re-run)", apiErr.Error())
	}
	return fmt.Sprintf("permanent: %v (fix and re-run)", err)
}

// UpdateStateFromExtract replaces the state's artifact set wholesale with
// the extracted one and stamps the apply time. The caller must hold the
// backend lock.
func UpdateStateFromExtract(ctx context.Context, backend state.Backend, st *state.State, extracted map[string]*artifact.Artifact) error {
	st.Artifacts = map[string]*state.Artifact{}
	for key, a := range extracted {
		st.Artifacts[key] = &state.Artifact{
			Kind:       a.Kind,
			ID:         a.ID,
			Hash:       a.Hash,
			Properties: a.Properties,
		}
	}
	st.StampApplied(time.Now())
	return backend.Write(ctx, st)
}
