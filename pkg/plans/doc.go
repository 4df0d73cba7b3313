// Package plans defines the subscription plan catalog and the feature
// gate that decides whether a plan-gated capability is available to a
// tenant. Plan features are orthogonal to roles: a feature disabled at
// the plan level stays unavailable no matter what a role grants.
package plans
