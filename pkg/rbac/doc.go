// Package rbac implements authorization resolution for the admin console:
// the role catalog, per-tenant role customization, effective permission
// resolution, and the access decision engine every protected operation
// consults.
//
// Roles are seeded at startup and read-only at runtime. Tenants may
// customize the two non-privileged roles (question_manager, inspector)
// with add/remove diffs over the role's base permissions and pages.
// Component features are role-intrinsic and never customizable.
//
// Decisions never fault on missing configuration: a role that cannot be
// resolved denies safely, with a single, audited exception for the
// org_admin role.
package rbac
