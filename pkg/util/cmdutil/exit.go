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

// Package cmdutil contains shared command-line plumbing: consistent error
// handling and exit-code conventions for every verb.
package cmdutil

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/util/logging"
)

// ExitCode is an error that carries a specific process exit code. It is used
// by verbs whose exit code is part of their contract (plan exits 2 when
// changes exist) rather than an error condition.
type ExitCode struct {
	Code int
}

func (e ExitCode) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// RunFunc wraps an error-returning run func with standard error handling. All
// commands wrap themselves in this to ensure consistent error behavior, and to
// avoid cobra's default of printing usage text after a runtime failure.
func RunFunc(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := run(cmd, args); err != nil {
			if code, ok := err.(ExitCode); ok {
				logging.Flush()
				os.Exit(code.Code)
			}
			ExitError(errorMessage(err))
		}
	}
}

// ExitError issues an error message and exits with the standard error exit code.
func ExitError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	logging.Flush()
	os.Exit(1)
}

// errorMessage flattens multi-errors into a numbered list; single wrapped
// errors print as themselves.
func errorMessage(err error) string {
	if multi, ok := err.(*multierror.Error); ok {
		wr := multi.WrappedErrors()
		if len(wr) == 1 {
			return errorMessage(wr[0])
		}
		msg := fmt.Sprintf("%d errors occurred:", len(wr))
		for i, werr := range wr {
			msg += fmt.Sprintf("\n    %d) %s", i+1, errorMessage(werr))
		}
		return msg
	}
	return err.Error()
}

// NoArgs is a cobra argument validator that rejects positional arguments.
func NoArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("command %q does not accept arguments", cmd.Use)
	}
	return nil
}
