// Package progression models a user's cumulative progress: the aggregate
// that holds points, XP, level, streak and achievement counters, together
// with the pure rules that change it (scoring, level resolution, streaks).
//
// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE OWNERSHIP
// ══════════════════════════════════════════════════════════════════════════════
//
// Progress is written only through Repository.Update, which hands the caller a
// private copy of the aggregate inside a transaction. Mutating methods on
// Progress always recompute Level together with XP, so a committed aggregate
// never carries a stale level.
//
// Session and daily-completion records are appended through Writes in the same
// transaction as the aggregate change they belong to.
package progression
