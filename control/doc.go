// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime observability for the coordination core.
// Exposes a counter/gauge registry and named debug probes that the driver
// facade wires to queue depth, flip states, and capability flags.
// See metrics.go and debug.go for implementation details.
package control
