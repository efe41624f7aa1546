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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/engine"
	"github.com/apimops/apimops/pkg/util/cmdutil"
)

func newPlanCmd() *cobra.Command {
	var common commonFlags
	var target targetFlags
	var sourceDir, out, only string
	var verbose, noColor bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what an apply would change",
		Long: "plan diffs the source tree against the state file and prints the changes an\n" +
			"apply would execute. It takes no lock and issues no remote calls. Exits 0 when\n" +
			"there is nothing to do, 2 when changes exist, 1 on error.",
		Args: cmdutil.NoArgs,
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := common.stateBackend()
			if err != nil {
				return err
			}
			st, err := backend.Read(ctx)
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("state file not found; run 'init' first")
			}
			target.resolve(st)

			onlySet, err := artifact.ValidateOnly(parseOnly(only))
			if err != nil {
				return err
			}

			coords := engine.TargetCoords{
				SubscriptionID: target.subscriptionID,
				ResourceGroup:  target.resourceGroup,
				ServiceName:    target.serviceName,
			}
			p, err := engine.NewPlan(sourceDir, st, coords, onlySet)
			if err != nil {
				return err
			}
			engine.PrintPlan(os.Stdout, p, verbose, useColor(noColor))

			if out != "" {
				if err := p.Save(out); err != nil {
					return err
				}
				fmt.Printf("Plan saved to %s\n", out)
			}

			if p.HasChanges() {
				return cmdutil.ExitCode{Code: 2}
			}
			return nil
		}),
	}

	common.register(cmd)
	target.register(cmd)
	cmd.Flags().StringVar(&sourceDir, "source-dir", defaultSourceDir, "Path to the source tree")
	cmd.Flags().StringVar(&out, "out", "", "Save the plan to a JSON file")
	cmd.Flags().StringVar(&only, "only", "", "Comma-separated list of kinds to include")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show unchanged artifacts")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}
