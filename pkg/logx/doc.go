// Package logx is the structured logger used across statuswatch.
//
// It wraps zerolog and keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional operator-chat sink (min-level + rate limiting)
package logx
