// Package metrics exports linker events as Prometheus metrics.
//
// A Collector implements linker.Observer; install it through
// linker.Options.Observer:
//
//	reg := prometheus.NewRegistry()
//	col, err := metrics.New(reg)
//	opts := linker.DefaultOptions()
//	opts.Observer = col
package metrics
