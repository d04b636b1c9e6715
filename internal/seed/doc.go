// Package seed defines the contract every entropy provider implements.
//
// Ownership boundary:
// - the Source capability (FillSeed, IsWorthTrying)
// - the derived Generate/Fill helpers and their zero-length fast path
// - the single failure kind, ErrAcquisitionFailed
// - a registry that deduplicates equal sources
//
// Concrete providers live in subpackages. Scheduling, retry and fallback
// across providers belong to callers (see internal/seeder and
// internal/seed/fallback).
package seed
