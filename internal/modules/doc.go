// Package modules holds the collaborator modules shipped with colibri: a
// synthetic weather source, a single-node thermal zone, heat emitters under
// proportional or PID control, and a constant source. The physics is deliberately simple; the
// modules exist to exercise the kernel with realistic wiring and iteration.
//
// Every module takes a plain config struct with yaml tags so that scheme
// files can set its parameters, and exposes a Kind used by the module
// registry.
package modules
