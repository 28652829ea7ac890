// Package identity derives the two identities a roast is counted against:
// the visitor session and a hash of the client network address.
//
// # Network Address
//
// With no trusted proxies configured the direct peer address is used and
// X-Forwarded-For is ignored, so clients cannot spoof their way past the
// network quota. With N trusted proxies the address N entries from the
// right of the X-Forwarded-For chain is used.
//
// Addresses are reduced to the first 16 hex characters of their SHA-256
// before they leave this package.
//
// # Sessions
//
// Sessions is middleware that issues a long-lived signed cookie holding a
// random session id and exposes the id through the request context.
package identity
