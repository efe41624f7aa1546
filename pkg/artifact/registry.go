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

package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// Registry lists every kind in deployment order. Creates and updates are
// applied in this order; deletes run in reverse. The order encodes
// prerequisites: named values before the policies that reference them,
// products and APIs before the edges that associate them.
var Registry = []Kind{
	&scalarKind{name: "named_value", subdir: "namedValues", restSegment: "namedValues", readFlat: true},
	&scalarKind{name: "gateway", subdir: "gateways", restSegment: "gateways", infoFile: "gatewayInformation.json", readFlat: true, writeDir: true},
	&scalarKind{name: "tag", subdir: "tags", restSegment: "tags", readFlat: true},
	&scalarKind{name: "version_set", subdir: "apiVersionSets", restSegment: "apiVersionSets", readFlat: true},
	&scalarKind{name: "backend", subdir: "backends", restSegment: "backends", readFlat: true},
	&scalarKind{name: "logger", subdir: "loggers", restSegment: "loggers", readFlat: true},
	&scalarKind{name: "diagnostic", subdir: "diagnostics", restSegment: "diagnostics", readFlat: true},
	&scalarKind{name: "policy_fragment", subdir: "policyFragments", restSegment: "policyFragments", infoFile: "policyFragmentInformation.json", readFlat: true, writeDir: true, externalizePolicy: true},
	&servicePolicyKind{},
	&scalarKind{name: "product", subdir: "products", restSegment: "products", infoFile: "productInformation.json", readFlat: true, writeDir: true, stripRefs: []string{"groups", "apis", "tags"}},
	&scalarKind{name: "group", subdir: "groups", restSegment: "groups", readFlat: true},
	&apiKind{},
	&scalarKind{name: "subscription", subdir: "subscriptions", restSegment: "subscriptions", infoFile: "subscriptionInformation.json", writeDir: true},
	&parentPolicyKind{name: "api_policy", parentSubdir: "apis", parentInfoFiles: apiInfoFiles, parentSegment: "apis", suffixLookup: true},
	&associationKind{
		name:         "api_tag",
		parentSubdir: "apis", parentInfoFiles: apiInfoFiles,
		sidecarFile: "tags.json", inlineProp: "tags",
		parentProp: "apiId", childProp: "tagId",
		parentSegment: "apis", childSegment: "tags",
		suffixLookup: true,
	},
	&apiDiagnosticKind{},
	&associationKind{
		name:         "gateway_api",
		parentSubdir: "gateways", parentInfoFiles: []string{"gatewayInformation.json"}, infoOptional: true,
		sidecarFile: "apis.json",
		parentProp:  "gatewayId", childProp: "apiId",
		parentSegment: "gateways", childSegment: "apis",
		provisioning: true,
	},
	&parentPolicyKind{name: "product_policy", parentSubdir: "products", parentInfoFiles: []string{"productInformation.json"}, parentSegment: "products"},
	&associationKind{
		name:         "product_group",
		parentSubdir: "products", parentInfoFiles: []string{"productInformation.json"},
		sidecarFile: "groups.json", inlineProp: "groups",
		parentProp: "productId", childProp: "groupId",
		parentSegment: "products", childSegment: "groups",
	},
	&associationKind{
		name:         "product_tag",
		parentSubdir: "products", parentInfoFiles: []string{"productInformation.json"},
		sidecarFile: "tags.json", inlineProp: "tags",
		parentProp: "productId", childProp: "tagId",
		parentSegment: "products", childSegment: "tags",
	},
	&associationKind{
		name:         "product_api",
		parentSubdir: "products", parentInfoFiles: []string{"productInformation.json"},
		sidecarFile: "apis.json", inlineProp: "apis",
		parentProp: "productId", childProp: "apiId",
		parentSegment: "products", childSegment: "apis",
	},
	&operationPolicyKind{},
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(Registry))
	for _, k := range Registry {
		m[k.Name()] = k
	}
	return m
}()

var orderIndex = func() map[string]int {
	m := make(map[string]int, len(Registry))
	for i, k := range Registry {
		m[k.Name()] = i
	}
	return m
}()

// ByName returns the kind registered under name, or nil.
func ByName(name string) Kind {
	return byName[name]
}

// OrderIndex returns a kind's position in deployment order. Unknown kinds
// sort last so state entries from a newer engine still get a stable order.
func OrderIndex(name string) int {
	if i, ok := orderIndex[name]; ok {
		return i
	}
	return len(Registry)
}

// Names returns every registered kind name in deployment order.
func Names() []string {
	names := make([]string, len(Registry))
	for i, k := range Registry {
		names[i] = k.Name()
	}
	return names
}

// ValidateOnly checks a --only kind filter against the registry, returning
// the validated set or an error naming the first unknown kind.
func ValidateOnly(only []string) (map[string]bool, error) {
	if len(only) == 0 {
		return nil, nil
	}
	set := make(map[string]bool, len(only))
	for _, name := range only {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if ByName(name) == nil {
			known := Names()
			sort.Strings(known)
			return nil, fmt.Errorf("unknown kind %q (known kinds: %s)", name, strings.Join(known, ", "))
		}
		set[name] = true
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set, nil
}
