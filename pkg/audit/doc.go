// Package audit records security-relevant events: access decisions,
// customization changes, catalog re-seeds, and every firing of the
// org-admin fallback path, which must stay distinguishable and
// alertable.
package audit
