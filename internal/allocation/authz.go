package allocation

import (
	"fmt"

	"github.com/zulandar/inboxd/internal/models"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }

func deny(format string, args ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err returns nil when the decision allows the action and an error
// matching models.ErrForbidden otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%s: %w", d.Reason, models.ErrForbidden)
}

// CanResolve allows the conversation's assignee, or a manager or admin of
// the conversation's tenant.
func CanResolve(op *models.Operator, c *models.Conversation) Decision {
	if op == nil || c == nil {
		return deny("unknown operator or conversation")
	}
	if c.AssignedTo(op.ID) {
		return allow("assignee")
	}
	d := CanManage(op, c.TenantID)
	if !d.Allowed {
		return deny("operator %s is not the assignee and %s", op.ID, d.Reason)
	}
	return d
}

// CanManage allows managers and admins acting on their own tenant.
func CanManage(op *models.Operator, tenantID string) Decision {
	if op == nil {
		return deny("unknown operator")
	}
	if !op.Role.Supervises() {
		return deny("role %s cannot manage conversations", op.Role)
	}
	if op.TenantID != tenantID {
		return deny("operator %s does not belong to tenant %s", op.ID, tenantID)
	}
	return allow("role " + string(op.Role))
}

// CanAdminister allows admins of tenantID only.
func CanAdminister(op *models.Operator, tenantID string) Decision {
	if op == nil {
		return deny("unknown operator")
	}
	if op.Role != models.RoleAdmin {
		return deny("role %s is not %s", op.Role, models.RoleAdmin)
	}
	if op.TenantID != tenantID {
		return deny("operator %s does not belong to tenant %s", op.ID, tenantID)
	}
	return allow("admin")
}
