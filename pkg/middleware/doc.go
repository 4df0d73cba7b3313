// Package middleware provides HTTP middleware for identity extraction,
// request IDs, request logging, and rate limiting.
//
// Authentication happens upstream (API gateway); this package trusts the
// identity headers the gateway injects and makes them available on the
// request context for the authorization layer.
package middleware
