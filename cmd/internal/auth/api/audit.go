package authapi

import (
	"context"
	"encoding/json"
	"net"
	"strings"
)

func (h *Handler) auditRegister(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "user.register", &userID, ip, ua, nil)
}

func (h *Handler) auditLoginFailed(ctx context.Context, userID *string, ip net.IP, ua string, identifier, reason string) {
	h.insertAudit(ctx, "auth.login.failed", userID, ip, ua, map[string]any{
		"identifier": identifier,
		"reason":     reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, ip net.IP, ua string, identifier string) {
	h.insertAudit(ctx, "auth.login.success", &userID, ip, ua, map[string]any{
		"identifier": identifier,
	})
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", &userID, ip, ua, nil)
}

func (h *Handler) auditRefreshRejected(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.rejected", nil, ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout", &userID, ip, ua, nil)
}

func (h *Handler) auditPasswordChanged(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.password.changed", &userID, ip, ua, nil)
}

// insertAudit writes one audit row. Best-effort: failures are logged and
// never surfaced to the request.
func (h *Handler) insertAudit(ctx context.Context, action string, userID *string, ip net.IP, ua string, meta map[string]any) {
	if h == nil || h.pool == nil {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var uaVal *string
	if v := strings.TrimSpace(ua); v != "" {
		uaVal = &v
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO vidtube.audit_log (
			user_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, userID, action, ipVal, uaVal, metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}
