// Package components defines the UI component feature vocabulary: which
// fine-grained features each admin console component exposes. Component
// features are granted per role in the role catalog and are not
// tenant-customizable.
package components
