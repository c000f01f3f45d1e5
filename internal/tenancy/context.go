// Package tenancy carries the organization a request is scoped to.
package tenancy

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const orgKey ctxKey = "clinic.org_id"

// WithOrgID stores the org id in context.
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, orgKey, orgID)
}

// OrgIDFromContext extracts the org id if present and non-nil.
func OrgIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	orgID, ok := ctx.Value(orgKey).(uuid.UUID)
	return orgID, ok && orgID != uuid.Nil
}
