// Package roast holds the request vocabulary and text helpers around a code
// review: review modes and severities, input validation, share ids, score
// extraction, previews and language detection.
package roast
