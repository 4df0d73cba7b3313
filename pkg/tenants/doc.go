// Package tenants manages tenant records and their subscription plan
// assignment. It backs the plan feature gate's tenant-to-tier lookup.
package tenants
