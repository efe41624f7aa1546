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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/engine"
	"github.com/apimops/apimops/pkg/state"
	"github.com/apimops/apimops/pkg/util/cmdutil"
)

func newExtractCmd() *cobra.Command {
	var common commonFlags
	var target targetFlags
	var outputDir, only string
	var updateState bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract artifacts from the live service",
		Long: "extract snapshots the live service instance into the source tree format.\n" +
			"With --update-state it also replaces the state's artifact set with the\n" +
			"extracted one, taking the state lock for the write.",
		Args: cmdutil.NoArgs,
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var backend state.Backend
			var st *state.State
			var err error
			if updateState {
				if backend, err = common.stateBackend(); err != nil {
					return err
				}
				if st, err = backend.Read(ctx); err != nil {
					return err
				}
			}
			target.resolve(st)
			if err := target.require(); err != nil {
				return err
			}
			client, err := newClient(&target, &common)
			if err != nil {
				return err
			}

			onlySet, err := artifact.ValidateOnly(parseOnly(only))
			if err != nil {
				return err
			}

			fmt.Printf("\nExtracting from %s...\n\n", target.serviceName)
			extracted, extractErr := engine.Extract(ctx, client, outputDir, onlySet, os.Stdout)

			if updateState {
				if err := backend.Lock(ctx); err != nil {
					return err
				}
				defer backend.Unlock(ctx)

				if st, err = backend.Read(ctx); err != nil {
					return err
				}
				if st == nil {
					st = state.Empty(target.subscriptionID, target.resourceGroup, target.serviceName)
				}
				if err := engine.UpdateStateFromExtract(ctx, backend, st, extracted); err != nil {
					return err
				}
				fmt.Println("State file updated to match extracted artifacts.")
			}
			return extractErr
		}),
	}

	common.register(cmd)
	target.register(cmd)
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "Directory to write the extracted tree")
	cmd.Flags().StringVar(&only, "only", "", "Comma-separated list of kinds to include")
	cmd.Flags().BoolVar(&updateState, "update-state", false, "Replace state with the extracted artifacts")
	return cmd
}
