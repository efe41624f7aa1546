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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		code      string
		transient bool
	}{
		{"rate limit", 429, "", true},
		{"precondition", 412, "", true},
		{"server error", 500, "", true},
		{"bad gateway", 502, "", true},
		{"conflict pessimistic", 409, "PessimisticConcurrencyConflict", true},
		{"conflict generic code", 409, "ServiceConflict", true},
		{"conflict permanent", 409, "SomethingElse", false},
		{"unprocessable transient", 422, "ManagementApiFailure", true},
		{"unprocessable permanent", 422, "ValidationError", false},
		{"bad request", 400, "", false},
		{"unauthorized", 401, "", false},
		{"forbidden", 403, "", false},
		{"not found", 404, "", false},
		{"teapot", 418, "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.transient, classify(tt.status, tt.code))
		})
	}
}

func TestNewErrorParsesEnvelope(t *testing.T) {
	t.Parallel()

	body := []byte(`{"error": {"code": "ValidationError", "message": "bad value", "target": "displayName"}}`)
	e := newError(400, body, "req-42")
	assert.Equal(t, "ValidationError", e.Code)
	assert.Equal(t, "bad value", e.Message)
	assert.Equal(t, "displayName", e.Target)
	assert.Equal(t, "req-42", e.RequestID)
	assert.Equal(t, "ValidationError: bad value", e.Error())
}

func TestNewErrorMalformedBodyFallsBackToText(t *testing.T) {
	t.Parallel()

	e := newError(502, []byte("upstream exploded"), "")
	assert.Equal(t, "upstream exploded", e.Message)
	assert.True(t, e.Transient)

	empty := newError(500, nil, "")
	assert.Equal(t, "HTTP 500", empty.Error())
}

func TestIsNotFoundUnwraps(t *testing.T) {
	t.Parallel()

	err := errors.WithMessage(&Error{StatusCode: 404}, "reading policy")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
	assert.False(t, IsNotFound(nil))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(&Error{StatusCode: 429, Transient: true}))
	assert.False(t, IsTransient(&Error{StatusCode: 400}))
	assert.True(t, IsTransient(errors.New("connection reset")))
	assert.False(t, IsTransient(nil))
}
