// Package roastlog stores completed roasts so they can be shared by id,
// listed in the public feed and audited from the admin page.
//
// The log lives in its own SQLite database, separate from the budget and
// usage counters, and is written once per successful review. Code is only
// retained for roasts the submitter marked public.
package roastlog
