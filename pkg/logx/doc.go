// Package logx configures pagewatch's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - JSON output available for log shippers (one event per line on stdout)
//   - Level and format swappable at runtime via Service.Apply
package logx
