// Package server is the HTTP surface of the roast service.
//
// Routes:
//
//	POST /api/roast              run a roast; 403/422/402/429 on denial, 502 when the reviewer fails
//	GET  /api/roast/{share_id}   a stored roast
//	GET  /api/recent             the public feed
//	GET  /admin                  settings, spend, history and recent log rows (basic auth)
//	POST /admin/settings         update settings from config_<key> form fields (basic auth)
//	GET  /health, /ready, /version, /metrics
//
// Every request gets a request id and a signed session cookie before it is
// routed. Denials carry {"error", "stage"} so clients can tell the refusing
// check apart, and roast responses carry X-RateLimit-Remaining.
package server
