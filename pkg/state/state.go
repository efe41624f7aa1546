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

// Package state persists the record of what has been applied to a service
// instance, behind backends with exclusive locking. The local backend is a
// JSON file with a sidecar lock; the blob backend is an Azure Storage blob
// guarded by a lease.
package state

import (
	"context"
	"fmt"
	"time"
)

// Version is the state file schema version.
const Version = 1

// Artifact is the persisted record of one applied resource.
type Artifact struct {
	Kind       string                 `json:"kind"`
	ID         string                 `json:"id"`
	Hash       string                 `json:"hash"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// State is the full state document for one service instance.
type State struct {
	Version        int                  `json:"version"`
	APIMService    string               `json:"apim_service"`
	ResourceGroup  string               `json:"resource_group"`
	SubscriptionID string               `json:"subscription_id"`
	LastApplied    *time.Time           `json:"last_applied"`
	Artifacts      map[string]*Artifact `json:"artifacts"`
}

// Empty returns a fresh state document for the given target coordinates.
func Empty(subscriptionID, resourceGroup, serviceName string) *State {
	return &State{
		Version:        Version,
		APIMService:    serviceName,
		ResourceGroup:  resourceGroup,
		SubscriptionID: subscriptionID,
		Artifacts:      map[string]*Artifact{},
	}
}

// StampApplied records the completion time of an apply.
func (s *State) StampApplied(at time.Time) {
	utc := at.UTC()
	s.LastApplied = &utc
}

// Backend is the storage contract for state documents. Read is permitted
// without holding the lock; Write must only be called by the lock holder.
type Backend interface {
	// Init writes a fresh empty state for the given coordinates.
	Init(ctx context.Context, subscriptionID, resourceGroup, serviceName string) (*State, error)

	// Read returns the current state, or nil when none exists yet.
	Read(ctx context.Context) (*State, error)

	// Write persists the state document.
	Write(ctx context.Context, s *State) error

	// Lock acquires exclusive access, failing with *LockError on contention.
	Lock(ctx context.Context) error

	// Unlock releases the lock. Idempotent.
	Unlock(ctx context.Context) error

	// ForceUnlock clears the lock unconditionally, whoever holds it.
	ForceUnlock(ctx context.Context) error
}

// LockError reports lock contention. It is distinct from the transient and
// permanent fault taxonomy; the remedy is force-unlock, not a retry.
type LockError struct {
	Holder string
}

func (e *LockError) Error() string {
	msg := "state is locked; another process may be running (use force-unlock to clear)"
	if e.Holder != "" {
		msg = fmt.Sprintf("state is locked by %s; another process may be running (use force-unlock to clear)", e.Holder)
	}
	return msg
}

// IsLocked reports whether err is a lock contention failure.
func IsLocked(err error) bool {
	_, ok := err.(*LockError)
	return ok
}
