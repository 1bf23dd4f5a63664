// Package opensearch creates an opensearch-go/v2 client from environment
// configuration and exposes a health probe. The analytics package indexes
// evaluation and registration events through this client.
package opensearch
