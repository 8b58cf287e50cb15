// Package state keeps per-user conversation sessions in memory. Sessions are
// isolated by user id and replaced wholesale; idle ones can be swept.
package state
