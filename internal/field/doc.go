// Package field provides the typed ports modules exchange values through.
//
// A [Field] is a named value slot with a [Role] (input, output or parameter),
// a unit, a default value, optional bounds and an optional convergence policy.
// Fields are declared on a module's [Registry] during registration and are
// accessed through a typed [Port]:
//
//	func (z *Zone) RegisterFields(r *field.Registry) {
//	    z.outdoor = field.Input(r, "outdoor_temperature", math.NaN(), field.WithUnit("°C"))
//	    z.temperature = field.Output(r, "zone_temperature", 20.0,
//	        field.WithUnit("°C"), field.WithConvergence(1e-3, 0))
//	}
//
//	z.temperature.Set(z.outdoor.Get() + 1)
//
// The dynamic type of a field's value is fixed by its declaration. Every
// registry keeps fields in registration order so that scheduling over them is
// deterministic.
//
// # Series
//
// Output fields carry a time series. [Registry.SaveTimeStep] stores a deep
// copy of every output value, so later in-place changes to a live vector do not
// leak into recorded results.
package field
