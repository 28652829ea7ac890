// Package ratelimit enforces daily roast quotas per visitor session, per
// network identity and across the whole service.
//
// # Tiers
//
// Usage is counted in the daily_usage table under tagged identities:
//
//   - session:<session id>  compared with daily_roasts_per_session
//   - ip:<ip hash>          compared with daily_roasts_per_ip
//   - every row for today   compared with daily_roasts_global
//
// Tiers are evaluated in that order and the first one at its limit denies.
// A successful roast increments both the session and the ip row, so the
// global sum counts two events per roast.
//
// # Day Boundary
//
// "Today" is the local calendar date of the limiter's clock. Counters for a
// new day start at zero; old rows are removed by PruneOldUsage.
package ratelimit
