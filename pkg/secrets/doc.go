// Package secrets resolves ${secret:name} references in configuration
// values.
//
// A reference is looked up in each provider in order; the first hit wins.
// Two providers exist:
//
//   - EnvProvider reads ROASTLINE_SECRET_<NAME>, with the name upper-cased
//     and hyphens turned into underscores.
//   - FileProvider reads <dir>/<name>, the layout Docker and Kubernetes use
//     for mounted secrets. Files must be mode 0600 or 0400.
//
// Example:
//
//	reviewer:
//	  api_key: ${secret:anthropic-api-key}
package secrets
