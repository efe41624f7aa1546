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

// apimops is a Terraform-style deployment tool for Azure API Management:
// plan and apply a declarative source tree against a live service instance,
// extract a live instance back into the tree format, and manage the state
// file that records what has been applied.
package main

import (
	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/util/cmdutil"
	"github.com/apimops/apimops/pkg/util/logging"
)

func newRootCmd() *cobra.Command {
	var logToStderr bool
	var verbose int

	cmd := &cobra.Command{
		Use:   "apimops",
		Short: "Declarative deployment for Azure API Management",
		Long: "apimops reconciles a directory tree describing the desired configuration of an\n" +
			"API Management instance against the live service, Terraform-style: 'plan' shows\n" +
			"differences, 'apply' executes them in dependency order, 'extract' snapshots the\n" +
			"live instance into the tree format.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLogging(logToStderr, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Flush()
		},
	}

	cmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr instead of files")
	cmd.PersistentFlags().IntVarP(&verbose, "verbose-logging", "", 0, "Enable verbose logging (e.g. v=3)")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newForceUnlockCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		cmdutil.ExitError(err.Error())
	}
	logging.Flush()
}
