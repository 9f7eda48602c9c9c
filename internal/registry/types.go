// Package registry implements the tool registry and dispatcher (§5):
// a closed-enum ToolGroup, typed ToolDefinition records, and a Dispatcher
// that validates input, gates by scope, invokes the handler, and shapes
// errors uniformly. Grounded on the teacher's Handler dispatch in
// server/server.go (the RPCRequest → case-by-command switch), generalized
// from a hand-written switch into a registered-handler map.
package registry

import (
	"context"

	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

// ToolGroup is the closed set of ~25 functional groupings §5 assigns
// tools to, driving scope mapping and registry layout.
type ToolGroup string

const (
	GroupCore          ToolGroup = "core"
	GroupJSON          ToolGroup = "json"
	GroupText          ToolGroup = "text"
	GroupFulltext      ToolGroup = "fulltext"
	GroupPerformance   ToolGroup = "performance"
	GroupOptimization  ToolGroup = "optimization"
	GroupAdmin         ToolGroup = "admin"
	GroupMonitoring    ToolGroup = "monitoring"
	GroupBackup        ToolGroup = "backup"
	GroupReplication   ToolGroup = "replication"
	GroupPartitioning  ToolGroup = "partitioning"
	GroupTransactions  ToolGroup = "transactions"
	GroupSpatial       ToolGroup = "spatial"
	GroupSecurity      ToolGroup = "security"
	GroupCluster       ToolGroup = "cluster"
	GroupRoles         ToolGroup = "roles"
	GroupDocstore      ToolGroup = "docstore"
	GroupSysschema     ToolGroup = "sysschema"
	GroupStats         ToolGroup = "stats"
	GroupEvents        ToolGroup = "events"
	GroupSchema        ToolGroup = "schema"
	GroupShell         ToolGroup = "shell"
	GroupRouter        ToolGroup = "router"
	GroupProxySQL      ToolGroup = "proxysql"
	GroupCodemode      ToolGroup = "codemode"
)

// Handler is the function a tool registers to actually run. It receives
// already-validated, already-scope-checked args and returns a JSON-
// serializable result or an error the dispatcher will shape.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Annotations are client-facing UX hints about a tool's effect, carried
// in the capability listing so a client can decide what to auto-approve
// and what to confirm with a user before invoking.
type Annotations struct {
	ReadOnlyHint    bool `json:"readOnlyHint"`
	IdempotentHint  bool `json:"idempotentHint"`
	DestructiveHint bool `json:"destructiveHint"`
}

// ToolDefinition is one entry in the registry.
type ToolDefinition struct {
	Name           string
	Title          string
	Group          ToolGroup
	Description    string
	Input          validate.Descriptor
	RequiredScopes []string
	Annotations    Annotations
	Handler        Handler
	// MutatesSchema marks handlers whose success requires clearing the
	// schema introspector's cache (CREATE/ALTER/DROP TABLE, indexes, §5).
	MutatesSchema bool
}
