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
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/lease"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"github.com/apimops/apimops/pkg/util/logging"
)

const (
	// leaseDuration is the blob lease lifetime; the renewer fires at half
	// this interval while the lock is held.
	leaseDuration = 60 * time.Second
)

// blobLease is the slice of the SDK lease client the backend drives.
// *lease.BlobClient satisfies it; tests substitute fakes.
type blobLease interface {
	AcquireLease(ctx context.Context, duration int32, o *lease.BlobAcquireOptions) (lease.BlobAcquireResponse, error)
	RenewLease(ctx context.Context, o *lease.BlobRenewOptions) (lease.BlobRenewResponse, error)
	ReleaseLease(ctx context.Context, o *lease.BlobReleaseOptions) (lease.BlobReleaseResponse, error)
	BreakLease(ctx context.Context, o *lease.BlobBreakOptions) (lease.BlobBreakResponse, error)
}

// blobBackend stores state in an Azure Storage blob. The lock is a blob
// lease kept alive by a background renewer for as long as the lock is held;
// writes during the locked window pass the lease id so a competing holder
// cannot interleave.
type blobBackend struct {
	client    *azblob.Client
	container string
	blobName  string

	newLease   func(leaseID *string) (blobLease, error)
	renewEvery time.Duration

	leaseClient blobLease
	leaseID     string
	renewStop   chan struct{}
	renewDone   chan struct{}
}

// NewBlobBackend returns a Backend over a blob in the given storage account.
func NewBlobBackend(storageAccount, container, blobName string, cred azcore.TokenCredential) (Backend, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", storageAccount)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building blob client for %s", serviceURL)
	}
	b := &blobBackend{
		client:     client,
		container:  container,
		blobName:   blobName,
		renewEvery: leaseDuration / 2,
	}
	b.newLease = func(leaseID *string) (blobLease, error) {
		var opts *lease.BlobClientOptions
		if leaseID != nil {
			opts = &lease.BlobClientOptions{LeaseID: leaseID}
		}
		return lease.NewBlobClient(b.blobClient(), opts)
	}
	return b, nil
}

func (b *blobBackend) Init(ctx context.Context, subscriptionID, resourceGroup, serviceName string) (*State, error) {
	if _, err := b.client.CreateContainer(ctx, b.container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, errors.Wrapf(err, "creating container %s", b.container)
		}
	}
	s := Empty(subscriptionID, resourceGroup, serviceName)
	if err := b.Write(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *blobBackend) Read(ctx context.Context) (*State, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, b.blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "downloading state blob %s/%s", b.container, b.blobName)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "reading state blob")
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parsing state blob %s/%s", b.container, b.blobName)
	}
	if s.Artifacts == nil {
		s.Artifacts = map[string]*Artifact{}
	}
	return &s, nil
}

func (b *blobBackend) Write(ctx context.Context, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	var opts *azblob.UploadBufferOptions
	if b.leaseID != "" {
		opts = &azblob.UploadBufferOptions{
			AccessConditions: &blob.AccessConditions{
				LeaseAccessConditions: &blob.LeaseAccessConditions{LeaseID: &b.leaseID},
			},
		}
	}
	if _, err := b.client.UploadBuffer(ctx, b.container, b.blobName, append(data, '\n'), opts); err != nil {
		return errors.Wrapf(err, "uploading state blob %s/%s", b.container, b.blobName)
	}
	return nil
}

func (b *blobBackend) blobClient() *blob.Client {
	return b.client.ServiceClient().NewContainerClient(b.container).NewBlobClient(b.blobName)
}

func (b *blobBackend) Lock(ctx context.Context) error {
	id, err := uuid.NewV4()
	if err != nil {
		return errors.Wrap(err, "generating lease id")
	}
	leaseID := id.String()
	leaseClient, err := b.newLease(&leaseID)
	if err != nil {
		return errors.Wrap(err, "building lease client")
	}
	if _, err := leaseClient.AcquireLease(ctx, int32(leaseDuration/time.Second), nil); err != nil {
		if bloberror.HasCode(err, bloberror.LeaseAlreadyPresent) {
			return &LockError{}
		}
		return errors.Wrap(err, "acquiring blob lease")
	}
	b.leaseClient = leaseClient
	b.leaseID = leaseID
	b.renewStop = make(chan struct{})
	b.renewDone = make(chan struct{})
	go b.renewLoop(b.renewStop, b.renewDone, leaseClient)
	return nil
}

// renewLoop keeps the lease alive at half its duration until signaled. A
// failed renewal ends the loop; the next write surfaces the real error.
func (b *blobBackend) renewLoop(stop <-chan struct{}, done chan<- struct{}, leaseClient blobLease) {
	defer close(done)
	ticker := time.NewTicker(b.renewEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := leaseClient.RenewLease(context.Background(), nil); err != nil {
				logging.Warningf("state: lease renewal failed: %v", err)
				return
			}
			logging.V(5).Infof("state: renewed lease on %s/%s", b.container, b.blobName)
		}
	}
}

func (b *blobBackend) Unlock(ctx context.Context) error {
	if b.leaseClient == nil {
		return nil
	}
	close(b.renewStop)
	<-b.renewDone
	if _, err := b.leaseClient.ReleaseLease(ctx, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.LeaseIDMismatchWithLeaseOperation, bloberror.LeaseNotPresentWithLeaseOperation) {
			return errors.Wrap(err, "releasing blob lease")
		}
	}
	b.leaseClient = nil
	b.leaseID = ""
	return nil
}

// ForceUnlock breaks any outstanding lease immediately, whoever holds it.
func (b *blobBackend) ForceUnlock(ctx context.Context) error {
	leaseClient, err := b.newLease(nil)
	if err != nil {
		return errors.Wrap(err, "building lease client")
	}
	if _, err := leaseClient.BreakLease(ctx, &lease.BlobBreakOptions{BreakPeriod: to.Ptr(int32(0))}); err != nil {
		if !bloberror.HasCode(err, bloberror.LeaseNotPresentWithLeaseOperation, bloberror.BlobNotFound) {
			return errors.Wrap(err, "breaking blob lease")
		}
	}
	b.leaseClient = nil
	b.leaseID = ""
	return nil
}
