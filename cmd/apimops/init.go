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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/util/cmdutil"
)

func newInitCmd() *cobra.Command {
	var common commonFlags
	var target targetFlags
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an empty state file",
		Args:  cmdutil.NoArgs,
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := common.stateBackend()
			if err != nil {
				return err
			}

			existing, err := backend.Read(ctx)
			if err != nil {
				return err
			}
			if existing != nil && !force {
				return errors.New("state file already exists; use --force to overwrite")
			}

			target.resolve(nil)
			if _, err := backend.Init(ctx, target.subscriptionID, target.resourceGroup, target.serviceName); err != nil {
				return err
			}
			fmt.Println("Initialized empty state file.")
			if common.backend == "" || common.backend == "local" {
				fmt.Printf("  Backend: local (%s)\n", common.stateFile)
			} else {
				fmt.Println("  Backend: blob")
			}
			return nil
		}),
	}

	common.register(cmd)
	target.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing state file")
	return cmd
}
