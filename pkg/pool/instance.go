// Package pool is the connection/instance pool and server manager: the
// keyed state machine that owns every live `(space_id, server_id)`
// binding, drives outbound OAuth, feature discovery, prefix assignment,
// and reconnection.
//
// No direct file in original_source survived the retrieval filter for this
// layer (pool/mod.rs names instance.rs/server_manager.rs/connection.rs but
// none of the three are present in the pack), so the state machine itself
// is built directly from its described behavior; the Go idiom — a
// mutex-guarded map of per-key state plus a one-shot in-flight-attempt
// collapse — is grounded on the teacher's pkg/gateway/clientpool.go
// (clientGetter/sync.Once).
package pool

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// Instance is a snapshot of one server instance's live state: 's
// "`(space_id, server_id) → client_handle ⊕ discovered_features ⊕ status`".
type Instance struct {
	Key    domain.Key
	Status domain.ConnectionStatus
	Reason string
	Prefix string

	Client  *mcp.Client
	Session *mcp.ClientSession

	ConnectedAt time.Time
}
