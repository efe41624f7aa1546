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

// Package contract provides simple assertion helpers for internal invariants.
// A failed assertion indicates a bug in this program, never bad user input.
package contract

import "fmt"

// Assertf checks an invariant and panics with the formatted message if it does not hold.
func Assertf(cond bool, msg string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("fatal: An assertion has failed: %v", fmt.Sprintf(msg, args...)))
	}
}

// Requiref checks a precondition on a function parameter and panics if it does not hold.
func Requiref(cond bool, param string, msg string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("fatal: A precondition has failed for %v: %v", param, fmt.Sprintf(msg, args...)))
	}
}

// Failf unconditionally abandons the process with the formatted message.
func Failf(msg string, args ...interface{}) {
	panic(fmt.Sprintf("fatal: A failure has occurred: %v", fmt.Sprintf(msg, args...)))
}
