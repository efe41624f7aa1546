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
	"fmt"
	"io"
)

const colorReset = "\033[0m"

// actionColor maps actions to their ANSI colors: green for create, yellow
// for update, red for delete, dim gray for noop.
func actionColor(action Action) string {
	switch action {
	case ActionCreate:
		return "\033[32m"
	case ActionUpdate:
		return "\033[33m"
	case ActionDelete:
		return "\033[31m"
	default:
		return "\033[90m"
	}
}

// PrintPlan renders the plan for humans. Noops are hidden unless verbose;
// color can be disabled for non-terminal output.
func PrintPlan(out io.Writer, p *Plan, verbose, color bool) {
	fmt.Fprintf(out, "\nPlan: %d to create, %d to update, %d to delete, %d unchanged.\n\n",
		p.Summary.Create, p.Summary.Update, p.Summary.Delete, p.Summary.Noop)

	if !p.HasChanges() {
		fmt.Fprintf(out, "No changes. Infrastructure is up-to-date.\n\n")
		return
	}

	for _, c := range p.Changes {
		if c.Action == ActionNoop && !verbose {
			continue
		}
		line := fmt.Sprintf("  %s %-20s %q  (%s)", actionSymbol(c.Action), kindLabel(c.Kind), c.DisplayName, c.Detail)
		if color {
			line = actionColor(c.Action) + line + colorReset
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
}
