// Package logx is cadence's structured logger, a thin layer over zerolog.
//
// Console output is human readable (or JSON for journald), the optional file
// sink is always JSON, and both level and sinks can be swapped at runtime by
// Service.Apply when the config file is reloaded.
package logx
