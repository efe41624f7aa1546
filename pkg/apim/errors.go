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

package apim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Error is a classified management-plane failure. Transient marks faults the
// retry envelope may replay and the operator may rerun; everything else needs
// a fix before it can succeed.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Target     string
	RequestID  string
	Transient  bool
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return msg
}

// IsTransient reports whether err is a management-plane fault worth retrying
// or rerunning. Transport-level failures (no HTTP response at all) count as
// transient too.
func IsTransient(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}
	return err != nil
}

// IsNotFound reports whether err is a 404 from the management plane.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// AsError unwraps err to the classified management-plane error, if any.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// errorBody is the standard ARM error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Target  string `json:"target"`
	} `json:"error"`
}

// newError parses and classifies an error response. Malformed JSON bodies
// degrade to the raw text so the operator still sees something useful.
func newError(status int, body []byte, requestID string) *Error {
	e := &Error{StatusCode: status, RequestID: requestID}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		e.Code = parsed.Error.Code
		e.Message = parsed.Error.Message
		e.Target = parsed.Error.Target
	} else if text := strings.TrimSpace(string(body)); text != "" {
		e.Message = text
	}

	e.Transient = classify(status, e.Code)
	return e
}

// classify implements the retry decision table: rate limits, precondition
// failures and server errors always retry; 409 and 422 retry only for the
// known-transient error codes; the rest of the 4xx range is permanent.
func classify(status int, code string) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status == http.StatusPreconditionFailed:
		return true
	case status >= 500:
		return true
	case status == http.StatusConflict:
		return strings.Contains(code, "PessimisticConcurrencyConflict") || strings.Contains(code, "Conflict")
	case status == http.StatusUnprocessableEntity:
		return strings.Contains(code, "ManagementApiFailure")
	default:
		return false
	}
}
