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
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apimops/apimops/pkg/apim"
	"github.com/apimops/apimops/pkg/state"
)

const (
	defaultStateFile = ".apim-state.json"
	defaultSourceDir = "."
	defaultOutputDir = "./api-management"
)

// commonFlags carries the state-backend and credential flags shared by every
// verb.
type commonFlags struct {
	backend        string
	stateFile      string
	storageAccount string
	container      string
	blobName       string

	clientID     string
	clientSecret string
	tenantID     string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "State backend: local or blob (default: local, or APIM_STATE_BACKEND)")
	cmd.Flags().StringVar(&f.stateFile, "state-file", defaultStateFile, "Path to the local state file")
	cmd.Flags().StringVar(&f.storageAccount, "backend-storage-account", "", "Storage account holding the state blob")
	cmd.Flags().StringVar(&f.container, "backend-container", "", "Blob container holding the state blob")
	cmd.Flags().StringVar(&f.blobName, "backend-blob", "", "Blob path of the state document")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "Service principal client id")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "Service principal client secret")
	cmd.Flags().StringVar(&f.tenantID, "tenant-id", "", "Azure AD tenant id")
}

// stateBackend resolves the backend choice (flag, then environment, then
// local) and constructs it.
func (f *commonFlags) stateBackend() (state.Backend, error) {
	choice := f.backend
	if choice == "" {
		choice = os.Getenv("APIM_STATE_BACKEND")
	}
	switch choice {
	case "", "local":
		path := f.stateFile
		if path == "" {
			path = os.Getenv("APIM_STATE_FILE")
		}
		if path == "" {
			path = defaultStateFile
		}
		return state.NewLocalBackend(path), nil
	case "blob", "azure":
		account := firstOf(f.storageAccount, os.Getenv("APIM_STATE_STORAGE_ACCOUNT"))
		container := firstOf(f.container, os.Getenv("APIM_STATE_CONTAINER"))
		blobName := firstOf(f.blobName, os.Getenv("APIM_STATE_BLOB"))
		var missing []string
		if account == "" {
			missing = append(missing, "--backend-storage-account or APIM_STATE_STORAGE_ACCOUNT")
		}
		if container == "" {
			missing = append(missing, "--backend-container or APIM_STATE_CONTAINER")
		}
		if blobName == "" {
			missing = append(missing, "--backend-blob or APIM_STATE_BLOB")
		}
		if len(missing) > 0 {
			return nil, errors.Errorf("blob state backend requires: %s", strings.Join(missing, ", "))
		}
		cred, err := apim.NewCredential(f.tenantID, f.clientID, f.clientSecret)
		if err != nil {
			return nil, err
		}
		return state.NewBlobBackend(account, container, blobName, cred)
	default:
		return nil, errors.Errorf("unknown state backend %q (expected local or blob)", choice)
	}
}

// targetFlags carries the service instance coordinates. They resolve in
// strict priority: flag, then environment, then state file.
type targetFlags struct {
	subscriptionID string
	resourceGroup  string
	serviceName    string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subscriptionID, "subscription-id", "", "Azure subscription id (or APIM_SUBSCRIPTION_ID)")
	cmd.Flags().StringVar(&f.resourceGroup, "resource-group", "", "Resource group name (or APIM_RESOURCE_GROUP)")
	cmd.Flags().StringVar(&f.serviceName, "service-name", "", "API Management service name (or APIM_SERVICE_NAME)")
}

// resolve fills unset coordinates from the environment and then from the
// state document.
func (f *targetFlags) resolve(st *state.State) {
	f.subscriptionID = firstOf(f.subscriptionID, os.Getenv("APIM_SUBSCRIPTION_ID"))
	f.resourceGroup = firstOf(f.resourceGroup, os.Getenv("APIM_RESOURCE_GROUP"))
	f.serviceName = firstOf(f.serviceName, os.Getenv("APIM_SERVICE_NAME"))
	if st != nil {
		f.subscriptionID = firstOf(f.subscriptionID, st.SubscriptionID)
		f.resourceGroup = firstOf(f.resourceGroup, st.ResourceGroup)
		f.serviceName = firstOf(f.serviceName, st.APIMService)
	}
}

// require errors if any coordinate remains unset after resolution.
func (f *targetFlags) require() error {
	var missing []string
	if f.subscriptionID == "" {
		missing = append(missing, "--subscription-id")
	}
	if f.resourceGroup == "" {
		missing = append(missing, "--resource-group")
	}
	if f.serviceName == "" {
		missing = append(missing, "--service-name")
	}
	if len(missing) > 0 {
		return errors.Errorf("%s required; set via flags, environment "+
			"(APIM_SUBSCRIPTION_ID, APIM_RESOURCE_GROUP, APIM_SERVICE_NAME), or init the state file",
			strings.Join(missing, ", "))
	}
	return nil
}

// newClient builds the management-plane client for the resolved target.
func newClient(target *targetFlags, common *commonFlags) (*apim.Client, error) {
	cred, err := apim.NewCredential(common.tenantID, common.clientID, common.clientSecret)
	if err != nil {
		return nil, err
	}
	tokens := apim.TokenSourceFromCredential(cred)
	return apim.NewClient(target.subscriptionID, target.resourceGroup, target.serviceName, tokens), nil
}

// parseOnly splits a comma-separated --only value into a kind filter.
func parseOnly(only string) []string {
	if only == "" {
		return nil
	}
	return strings.Split(only, ",")
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
