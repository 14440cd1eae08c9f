// Package types defines the core data types for the tiered skill-trend store:
// storage tiers, calendar-aligned bucket keys, skill maps and aggregates,
// retention policies, and trend points.
//
// This package has no dependencies on other skillvault packages.
package types
