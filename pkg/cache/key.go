package cache

import (
	"fmt"
	"strings"
)

// keyPrefix namespaces every page key in a shared Redis.
const keyPrefix = "bulkfetch:page"

// PageKey identifies one listing page request.
type PageKey struct {
	// Endpoint is the listing endpoint path (e.g. "/api/listWriteUps").
	Endpoint string

	// RootID is the collection being listed.
	RootID string

	// PageSize is part of the key because tokens are only valid for the
	// page size they were issued with.
	PageSize int

	// PageToken is the cursor for this page; empty for the first page.
	PageToken string
}

// String generates a deterministic cache key string.
// Format: bulkfetch:page:endpoint:root=<id>:size=<n>:token=<token>
//
// Example:
//
//	bulkfetch:page:api/listWriteUps:root=12345:size=50:token=first
func (k PageKey) String() string {
	token := k.PageToken
	if token == "" {
		token = "first"
	}

	return strings.Join([]string{
		k.rootPrefix(),
		fmt.Sprintf("size=%d", k.PageSize),
		fmt.Sprintf("token=%s", token),
	}, ":")
}

// rootPrefix is the part of the key shared by every page of one listing.
func (k PageKey) rootPrefix() string {
	parts := []string{keyPrefix}
	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}
	parts = append(parts, fmt.Sprintf("root=%s", k.RootID))
	return strings.Join(parts, ":")
}
