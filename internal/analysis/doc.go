// Package analysis computes post-run diagnostics on output series:
//
//   - [Describe]: count, min, max, mean, standard deviation and final value
//   - [PowerSpectrum] and [DominantPeriod]: periodic content of a series,
//     e.g. the daily cycle of a zone temperature
//   - [SettlingStep]: first time step after which a series stays within a
//     band around its final value
//
// NaN entries, which mark values that were never produced, are ignored
// by every function.
package analysis
