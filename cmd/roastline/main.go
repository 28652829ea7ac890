// Roastline serves AI code roasts behind a cost-control gate.
//
// Every roast passes a kill switch, input limits, a monthly spend budget and
// per-session, per-IP and global daily quotas before the reviewer is called.
//
// Usage:
//
//	# Start the server with defaults and environment overrides
//	roastline run
//
//	# Start with a configuration file
//	roastline run --config /etc/roastline/config.yaml
//
//	# Show this month's spend
//	roastline budget status
//
//	# Flip the kill switch without a restart
//	roastline settings set enable_roasting false
//
//	# Delete usage counters older than two weeks
//	roastline prune --keep-days 14
package main

func main() {
	Execute()
}
