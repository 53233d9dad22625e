package scheduler

// Package scheduler wires the background jobs for the crypto tracker.
// It handles:
// - Periodic price fetching for watchlisted coins
// - Alert evaluation (chained after a fetch and on its own timer)
// - Daily coin registry synchronization
// - Hourly trending and gainers/losers snapshots
// - Weekly price retention cleanup
//
// Every job runs in singleton mode: a tick that arrives while the
// previous run of the same job is still executing is skipped.
//
// The jobs themselves are implemented in jobs.go
