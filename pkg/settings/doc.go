// Package settings is the admin-editable key/value configuration read by the
// admission gate on every request.
//
// Values are stored as strings in the app_config table and parsed on read.
// Every read takes a caller default that is used when the key is absent or
// cannot be parsed, so a missing row never fails a request.
//
// Components depend on the Reader interface only. Store is the SQLite-backed
// implementation; Static is a fixed map for tests and tooling.
package settings
