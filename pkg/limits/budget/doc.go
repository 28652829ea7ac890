// Package budget provides the monthly spend ledger for model calls.
//
// # Overview
//
// Spend is tracked per calendar month (UTC, YYYY-MM). The ledger answers one
// question before a model call, "can we afford one more roast", and records
// the actual cost after the call succeeds.
//
// # Decision
//
// CheckBudget denies when the month's spend has reached the limit, or when
// adding the flat per-roast estimate (cost_per_roast_cents) would exceed it.
// Crossing budget_warning_threshold percent only logs a warning.
//
// # Usage
//
//	ledger := budget.NewLedger(backend, settingsStore)
//
//	decision, err := ledger.CheckBudget(ctx)
//	if err != nil {
//	    // fail closed
//	}
//	if !decision.Allowed {
//	    return decision.Reason
//	}
//
//	// after the model call succeeds
//	err = ledger.RecordCost(ctx, result.CostCents)
package budget
