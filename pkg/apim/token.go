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
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/pkg/errors"
)

// managementScope is the ARM token audience.
const managementScope = "https://management.azure.com/.default"

// TokenSource yields bearer tokens for the management plane. The transport
// caches the token and refreshes through this interface shortly before the
// declared expiry.
type TokenSource interface {
	Token(ctx context.Context) (string, time.Time, error)
}

// NewCredential builds the Azure credential: explicit client-secret when the
// service principal triple is fully supplied, the ambient default chain
// (environment, managed identity, CLI) otherwise.
func NewCredential(tenantID, clientID, clientSecret string) (azcore.TokenCredential, error) {
	if tenantID != "" && clientID != "" && clientSecret != "" {
		cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building client secret credential")
		}
		return cred, nil
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errors.Wrap(err, "building default credential chain")
	}
	return cred, nil
}

// credentialTokenSource adapts an azcore credential to TokenSource.
type credentialTokenSource struct {
	cred azcore.TokenCredential
}

// TokenSourceFromCredential wraps an Azure credential as a TokenSource
// scoped to the ARM audience.
func TokenSourceFromCredential(cred azcore.TokenCredential) TokenSource {
	return &credentialTokenSource{cred: cred}
}

func (s *credentialTokenSource) Token(ctx context.Context) (string, time.Time, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{managementScope}})
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "acquiring management token")
	}
	return tok.Token, tok.ExpiresOn, nil
}

// StaticTokenSource returns a TokenSource that always yields the given token.
// Used by tests and by callers that manage their own credentials.
func StaticTokenSource(token string) TokenSource {
	return staticTokenSource(token)
}

type staticTokenSource string

func (s staticTokenSource) Token(context.Context) (string, time.Time, error) {
	return string(s), time.Now().Add(24 * time.Hour), nil
}
