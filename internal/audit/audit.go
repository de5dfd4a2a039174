// Package audit records who changed what and tells connected dashboards.
package audit

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"opsboard/internal/database"
	"opsboard/internal/tables"
	"opsboard/internal/websocket"
)

// Action constants.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionImport = "import"
	ActionLink   = "link"
	ActionExport = "export"
)

// Entry is one audit_log row.
type Entry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// Logger writes audit entries through the service handle.
type Logger struct {
	DB  *tables.Client
	Hub *websocket.Hub
	Log *zap.Logger
}

// Record stores an entry and broadcasts the change. Write failures are
// logged, not returned.
func (l *Logger) Record(ctx context.Context, username, action, module, recordID, summary string) {
	if l == nil {
		return
	}
	if username == "" {
		username = "system"
	}
	if l.DB != nil {
		_, err := l.DB.Insert(ctx, database.TableAuditLog, tables.Row{
			"id":         uuid.NewString(),
			"username":   username,
			"action":     action,
			"module":     module,
			"record_id":  recordID,
			"summary":    summary,
			"created_at": database.Now(),
		})
		if err != nil && l.Log != nil {
			l.Log.Warn("audit log write failed", zap.String("module", module), zap.String("record", recordID), zap.Error(err))
		}
	}
	l.Hub.BroadcastChange(module, action, recordID)
}

// Recent returns the newest entries, optionally for one module.
func (l *Logger) Recent(ctx context.Context, module string, limit int) ([]Entry, error) {
	if l == nil || l.DB == nil {
		return nil, nil
	}
	q := tables.Query{OrderBy: "created_at", Desc: true, Limit: limit}
	if module != "" {
		q.Filters = []tables.Filter{tables.Eq("module", module)}
	}
	rows, err := l.DB.Select(ctx, database.TableAuditLog, q)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			ID:        str(r["id"]),
			Username:  str(r["username"]),
			Action:    str(r["action"]),
			Module:    str(r["module"]),
			RecordID:  str(r["record_id"]),
			Summary:   str(r["summary"]),
			CreatedAt: str(r["created_at"]),
		})
	}
	return out, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Username identifies the caller for the audit trail: the X-Opsboard-User
// header when set, otherwise the key tier that authorized the request.
func Username(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get("X-Opsboard-User")); u != "" {
		return u
	}
	if tier, ok := r.Context().Value(TierKey).(string); ok && tier != "" {
		return tier
	}
	return "system"
}

type ctxKey string

// TierKey holds the credential tier ("public" or "service") the server
// middleware granted the request.
const TierKey ctxKey = "tier"
