// Package health serves the liveness, readiness and version endpoints.
//
// /health always answers 200 while the process is up and reports whether a
// roast could currently be admitted (kill switch on and budget left).
// /ready runs the registered component checks, one per database, and
// answers 503 when any of them fails. /version reports build information.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("counters", counterStore.Ping)
//	checker.RegisterCheck("roast_log", roasts.Ping)
//	checker.SetRoastingProbe(gate.RoastingEnabled)
//	checker.Register(mux, version, commit, buildTime)
package health
