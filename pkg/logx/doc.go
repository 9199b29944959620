// Package logx configures subwatch's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps console
// output readable (short timestamp + short caller) and file output
// JSON-structured, with runtime-swappable sinks via Service.Apply.
package logx
