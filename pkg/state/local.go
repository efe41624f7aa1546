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

package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// localBackend stores state as a JSON file. Writes go through a temp file
// and rename so a crash never leaves a torn document. The lock is a sidecar
// created with O_EXCL; its body identifies the holder for the error message
// a contending process prints.
type localBackend struct {
	path     string
	lockPath string
}

// NewLocalBackend returns a Backend over the given state file path.
func NewLocalBackend(path string) Backend {
	return &localBackend{path: path, lockPath: path + ".lock"}
}

func (b *localBackend) Init(ctx context.Context, subscriptionID, resourceGroup, serviceName string) (*State, error) {
	s := Empty(subscriptionID, resourceGroup, serviceName)
	if err := b.Write(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *localBackend) Read(context.Context) (*State, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading state file %s", b.path)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parsing state file %s", b.path)
	}
	if s.Artifacts == nil {
		s.Artifacts = map[string]*Artifact{}
	}
	return &s, nil
}

func (b *localBackend) Write(_ context.Context, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return errors.Wrapf(err, "renaming %s over %s", tmp, b.path)
	}
	return nil
}

// lockIdentity describes the lock holder, written into the sidecar.
type lockIdentity struct {
	PID      int       `json:"pid"`
	Host     string    `json:"host"`
	ID       string    `json:"id"`
	Acquired time.Time `json:"acquired"`
}

func (b *localBackend) Lock(context.Context) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	f, err := os.OpenFile(b.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return &LockError{Holder: b.lockHolder()}
		}
		return errors.Wrapf(err, "creating lock file %s", b.lockPath)
	}
	defer f.Close()

	host, _ := os.Hostname()
	id, _ := uuid.NewV4()
	identity := lockIdentity{
		PID:      os.Getpid(),
		Host:     host,
		ID:       id.String(),
		Acquired: time.Now().UTC(),
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return errors.Wrap(err, "encoding lock identity")
	}
	if _, err := f.Write(data); err != nil {
		return errors.Wrapf(err, "writing lock file %s", b.lockPath)
	}
	return nil
}

// lockHolder describes whoever holds the sidecar, best-effort.
func (b *localBackend) lockHolder() string {
	data, err := os.ReadFile(b.lockPath)
	if err != nil {
		return ""
	}
	var identity lockIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		return ""
	}
	return fmt.Sprintf("pid %d on %s since %s", identity.PID, identity.Host, identity.Acquired.Format(time.RFC3339))
}

func (b *localBackend) Unlock(context.Context) error {
	if err := os.Remove(b.lockPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing lock file %s", b.lockPath)
	}
	return nil
}

func (b *localBackend) ForceUnlock(ctx context.Context) error {
	return b.Unlock(ctx)
}
