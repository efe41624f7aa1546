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
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/artifact"
	"github.com/apimops/apimops/pkg/engine"
	"github.com/apimops/apimops/pkg/state"
	"github.com/apimops/apimops/pkg/util/cmdutil"
)

func newApplyCmd() *cobra.Command {
	var common commonFlags
	var target targetFlags
	var sourceDir, planFile, only string
	var force, autoApprove, noColor bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply changes to the service instance",
		Long: "apply executes the planned changes against the live service in dependency\n" +
			"order, holding the state lock and persisting state after every successful\n" +
			"change. With --plan it executes a previously saved plan; with --force it\n" +
			"bypasses the diff and pushes every local artifact.",
		Args: cmdutil.NoArgs,
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := common.stateBackend()
			if err != nil {
				return err
			}
			onlySet, err := artifact.ValidateOnly(parseOnly(only))
			if err != nil {
				return err
			}

			if force {
				return applyForce(ctx, backend, &target, &common, sourceDir, onlySet)
			}

			var p *engine.Plan
			if planFile != "" {
				if p, err = engine.LoadPlan(planFile); err != nil {
					return err
				}
				target.subscriptionID = firstOf(target.subscriptionID, p.TargetCoords.SubscriptionID)
				target.resourceGroup = firstOf(target.resourceGroup, p.TargetCoords.ResourceGroup)
				target.serviceName = firstOf(target.serviceName, p.TargetCoords.ServiceName)
			} else {
				st, err := backend.Read(ctx)
				if err != nil {
					return err
				}
				if st == nil {
					return errors.New("state file not found; run 'init' first")
				}
				target.resolve(st)
				coords := engine.TargetCoords{
					SubscriptionID: target.subscriptionID,
					ResourceGroup:  target.resourceGroup,
					ServiceName:    target.serviceName,
				}
				if p, err = engine.NewPlan(sourceDir, st, coords, onlySet); err != nil {
					return err
				}
			}

			if !p.HasChanges() {
				fmt.Println("\nNo changes. Infrastructure is up-to-date.")
				return nil
			}
			engine.PrintPlan(os.Stdout, p, false, useColor(noColor))

			if !autoApprove && !confirm("Do you want to apply these changes? (yes/no): ") {
				fmt.Println("Apply cancelled.")
				return nil
			}

			target.resolve(nil)
			if err := target.require(); err != nil {
				return err
			}
			client, err := newClient(&target, &common)
			if err != nil {
				return err
			}

			if err := backend.Lock(ctx); err != nil {
				return err
			}
			defer backend.Unlock(ctx)

			// Re-read under the lock; the advisory plan may be stale.
			st, err := backend.Read(ctx)
			if err != nil {
				return err
			}
			if st == nil {
				st = state.Empty(target.subscriptionID, target.resourceGroup, target.serviceName)
			}

			_, _, applyErr := engine.Apply(ctx, p, client, backend, st, os.Stdout)
			return applyErr
		}),
	}

	common.register(cmd)
	target.register(cmd)
	cmd.Flags().StringVar(&sourceDir, "source-dir", defaultSourceDir, "Path to the source tree")
	cmd.Flags().StringVar(&planFile, "plan", "", "Path to a saved plan file")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the state diff and push all artifacts")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&only, "only", "", "Comma-separated list of kinds to include")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func applyForce(ctx context.Context, backend state.Backend, target *targetFlags, common *commonFlags, sourceDir string, only map[string]bool) error {
	st, err := backend.Read(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("state file not found; run 'init' first")
	}
	target.resolve(st)
	if err := target.require(); err != nil {
		return err
	}
	client, err := newClient(target, common)
	if err != nil {
		return err
	}

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

	_, _, applyErr := engine.ApplyForce(ctx, sourceDir, client, backend, st, only, os.Stdout)
	return applyErr
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}
