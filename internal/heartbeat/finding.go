package heartbeat

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

// Finding is one condition a detector flagged, with the action that
// would address it.
type Finding struct {
	Category       autonomy.Category
	EntityID       string
	Title          string
	Recommendation string
	Priority       knowledge.TaskPriority

	// ToolName and ToolArgs name the registry tool that addresses the
	// finding when the gate allows execution or drafts it for approval.
	ToolName string
	ToolArgs map[string]interface{}
}

// IdempotencyKey derives the stable dedup key for a finding: the same
// entity flagged for the same category within the same time bucket maps
// to the same key, so repeated sweeps cannot duplicate tasks.
func (f *Finding) IdempotencyKey(now time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = 24 * time.Hour
	}
	h := sha256.New()
	h.Write([]byte(f.EntityID))
	h.Write([]byte{0})
	h.Write([]byte(f.Category))
	h.Write([]byte{0})
	h.Write([]byte(now.UTC().Truncate(bucket).Format(time.RFC3339)))
	return hex.EncodeToString(h.Sum(nil))
}
