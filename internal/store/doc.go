// Package store defines the persistence interfaces the rest of the
// application depends on, together with the sentinel errors shared by
// all store implementations. Concrete implementations live under
// internal/platform.
package store
