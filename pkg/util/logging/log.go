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

// Package logging is a thin wrapper around glog so that callers need not
// interact with its flag machinery directly.
package logging

import (
	"flag"
	"strconv"
	"sync"

	"github.com/golang/glog"
)

// LogToStderr is true when diagnostic logging goes to stderr rather than files.
var LogToStderr = false

// Verbose is the currently configured verbosity level.
var Verbose = 0

var initOnce sync.Once

// VerboseLogger logs messages only when verbosity is at or above its level.
type VerboseLogger glog.Verbose

// Infof logs an informational message at the logger's verbosity level.
func (v VerboseLogger) Infof(format string, args ...interface{}) {
	if glog.Verbose(v) {
		glog.Verbose(v).Infof(format, args...)
	}
}

// V builds a logger that only logs when the configured verbosity is at least v.
func V(level int) VerboseLogger {
	return VerboseLogger(glog.V(glog.Level(level)))
}

// Infof logs an informational message unconditionally.
func Infof(format string, args ...interface{}) {
	glog.Infof(format, args...)
}

// Warningf logs a warning.
func Warningf(format string, args ...interface{}) {
	glog.Warningf(format, args...)
}

// Errorf logs an error.
func Errorf(format string, args ...interface{}) {
	glog.Errorf(format, args...)
}

// InitLogging configures glog from our own command-line flags. glog insists on
// registering flags on the global FlagSet, so parse a synthetic argument list
// instead of exposing its flags to users.
func InitLogging(logToStderr bool, verbose int) {
	initOnce.Do(func() {
		flag.CommandLine.Parse(nil) //nolint:errcheck // glog requires flag.Parse to have run.
	})

	LogToStderr = logToStderr
	Verbose = verbose
	if err := flag.Lookup("logtostderr").Value.Set(strconv.FormatBool(logToStderr)); err != nil {
		glog.Warningf("failed to set logtostderr: %v", err)
	}
	if err := flag.Lookup("v").Value.Set(strconv.Itoa(verbose)); err != nil {
		glog.Warningf("failed to set verbosity: %v", err)
	}
}

// Flush flushes any buffered log output.
func Flush() {
	glog.Flush()
}
