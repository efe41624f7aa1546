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

	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/util/cmdutil"
)

func newForceUnlockCmd() *cobra.Command {
	var common commonFlags

	cmd := &cobra.Command{
		Use:   "force-unlock",
		Short: "Clear a stuck state lock",
		Long: "force-unlock removes the state lock left behind by a crashed process: the\n" +
			"lock sidecar for the local backend, or any outstanding blob lease for the\n" +
			"blob backend.",
		Args: cmdutil.NoArgs,
		Run: cmdutil.RunFunc(func(cmd *cobra.Command, args []string) error {
			backend, err := common.stateBackend()
			if err != nil {
				return err
			}
			if err := backend.ForceUnlock(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Lock released.")
			return nil
		}),
	}

	common.register(cmd)
	return cmd
}
