// Package retention keeps the daily usage table small.
//
// Usage rows only matter for today's quotas, so anything older than the
// retention window is deleted: once at startup and then on a cron schedule.
//
//	pruner := retention.NewPruner(limiter, &retention.Config{
//	    KeepDays: 7,
//	    Schedule: "0 3 * * *", // daily at 3 AM
//	})
//	pruner.RunOnce(ctx)
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// Pruning failures are logged and reported in the result; they never stop
// the server.
package retention
