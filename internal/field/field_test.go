package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclare_RegistrationOrder(t *testing.T) {
	r := NewRegistry("zone")

	Input(r, "outdoor_temperature", 0.0, WithUnit("°C"))
	Parameter(r, "capacity", 1e6, WithUnit("J/K"))
	Output(r, "zone_temperature", 20.0)
	Input(r, "heating_power", 0.0, WithUnit("W"))

	require.NoError(t, r.Err())

	names := func(fs []*Field) []string {
		out := make([]string, len(fs))
		for i, f := range fs {
			out[i] = f.Name()
		}
		return out
	}

	assert.Equal(t, []string{"outdoor_temperature", "capacity", "zone_temperature", "heating_power"}, names(r.All()))
	assert.Equal(t, []string{"outdoor_temperature", "heating_power"}, names(r.Inputs()))
	assert.Equal(t, []string{"zone_temperature"}, names(r.Outputs()))
	assert.Equal(t, []string{"capacity"}, names(r.Parameters()))
}

func TestDeclare_Metadata(t *testing.T) {
	r := NewRegistry("zone")
	p := Output(r, "zone_temperature", 20.0,
		WithUnit("°C"),
		WithBounds(-50, 80),
		WithConvergence(1e-3, 25),
		WithDescription("air node temperature"),
	)

	f := p.Field()
	assert.Equal(t, "zone_temperature", f.Name())
	assert.Equal(t, RoleOutput, f.Role())
	assert.Equal(t, "°C", f.Unit())
	assert.Equal(t, "air node temperature", f.Description())
	assert.Equal(t, "zone", f.Owner())
	assert.True(t, f.ChecksConvergence())
	assert.Equal(t, 1e-3, f.Tolerance())
	assert.Equal(t, 25, f.MaxIterations())
	lo, hi := f.Bounds()
	assert.Equal(t, -50.0, lo)
	assert.Equal(t, 80.0, hi)
	assert.Equal(t, 20.0, p.Get())
	assert.Equal(t, 20.0, f.Default())
}

func TestDeclare_DuplicateName(t *testing.T) {
	r := NewRegistry("zone")
	Input(r, "x", 0.0)
	Output(r, "x", 1.0)

	err := r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateField)
	assert.Len(t, r.All(), 1)
}

func TestNew_DetachedConvergence(t *testing.T) {
	_, err := New("x", RoleOutput, 0.0, WithConvergence(1e-6, 0))
	assert.ErrorIs(t, err, ErrDetachedConvergence)

	f, err := New("x", RoleOutput, 0.0, WithUnit("m"))
	require.NoError(t, err)
	assert.Equal(t, "", f.Owner())

	r := NewRegistry("m")
	require.NoError(t, r.Attach(f))
	assert.Equal(t, "m", f.Owner())
}

func TestPort_GetSet(t *testing.T) {
	r := NewRegistry("m")
	scalar := Output(r, "y", 0.0)
	vector := Output(r, "temps", []float64{1, 2, 3})

	scalar.Set(4.5)
	assert.Equal(t, 4.5, scalar.Get())
	assert.Equal(t, 4.5, scalar.Field().Value())

	vector.Get()[1] = 7
	assert.Equal(t, []float64{1, 7, 3}, vector.Field().Value())

	var unbound Port[float64]
	assert.False(t, unbound.Bound())
	assert.True(t, scalar.Bound())
}

func TestField_SetTypeCheck(t *testing.T) {
	r := NewRegistry("m")
	p := Input(r, "x", 0.0)

	require.NoError(t, p.Field().Set(3.0))
	assert.ErrorIs(t, p.Field().Set("three"), ErrTypeMismatch)
	assert.ErrorIs(t, p.Field().Set(nil), ErrTypeMismatch)
	assert.Equal(t, 3.0, p.Get())

	p.Field().Reset()
	assert.Equal(t, 0.0, p.Get())
}

func TestField_Elements(t *testing.T) {
	r := NewRegistry("m")
	v := Output(r, "v", []float64{1, 2, 3})
	s := Output(r, "s", 1.0)

	e, err := v.Field().Element(2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, e)

	require.NoError(t, v.Field().SetElement(0, 9.0))
	assert.Equal(t, []float64{9, 2, 3}, v.Get())

	_, err = v.Field().Element(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, v.Field().SetElement(0, "x"), ErrTypeMismatch)

	_, err = s.Field().Element(0)
	assert.ErrorIs(t, err, ErrNotIndexable)
	assert.Nil(t, s.Field().ElemType())
	assert.Equal(t, "float64", v.Field().ElemType().String())
}

func TestField_CheckBounds(t *testing.T) {
	r := NewRegistry("m")
	p := Output(r, "t", 20.0, WithBounds(0, 100))
	v := Output(r, "ts", []float64{10, 20}, WithBounds(0, 100))

	assert.NoError(t, p.Field().CheckBounds())
	p.Set(120)
	assert.ErrorIs(t, p.Field().CheckBounds(), ErrOutOfBounds)

	assert.NoError(t, v.Field().CheckBounds())
	v.Get()[1] = -1
	assert.ErrorIs(t, v.Field().CheckBounds(), ErrOutOfBounds)
}

func TestDeclareEach(t *testing.T) {
	r := NewRegistry("wall")
	ports := DeclareEach(r, RoleOutput, "heat_flux", 0.0, []string{"north", "south"}, WithUnit("W"))

	require.Len(t, ports, 2)
	assert.Equal(t, "heat_flux_north", ports[0].Name())
	assert.Equal(t, "heat_flux_south", ports[1].Name())

	exp := ports[1].Field().Expansion()
	require.NotNil(t, exp)
	assert.Equal(t, Expansion{Base: "heat_flux", Key: "south", Index: 1}, *exp)
	assert.Equal(t, "W", ports[0].Field().Unit())

	assert.Equal(t, []string{"0", "1", "2"}, Indexes(3))
}

func TestSaveTimeStep_Snapshot(t *testing.T) {
	r := NewRegistry("m")
	v := Output(r, "v", []float64{1, 2})
	s := Output(r, "s", 0.0)
	Input(r, "in", 0.0)

	r.Allocate(2)
	r.SaveTimeStep(0)

	v.Get()[0] = 100
	s.Set(5)
	r.SaveTimeStep(1)

	series, ok := r.Series("v")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, series[0])
	assert.Equal(t, []float64{100, 2}, series[1])

	floats, ok := r.FloatSeries("s")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 5}, floats)

	_, ok = r.Series("in")
	assert.False(t, ok)
}

func TestSaveTimeStep_LazyAllocation(t *testing.T) {
	r := NewRegistry("m")
	s := Output(r, "s", 1.0)

	r.SaveTimeStep(2)
	series := s.Field().Series()
	require.Len(t, series, 3)
	assert.Nil(t, series[0])
	assert.Equal(t, 1.0, series[2])

	floats, _ := r.FloatSeries("s")
	assert.True(t, math.IsNaN(floats[0]))
}

func TestClone(t *testing.T) {
	src := map[string][]float64{"a": {1, 2}}
	dst := Clone(src).(map[string][]float64)
	dst["a"][0] = 9
	assert.Equal(t, 1.0, src["a"][0])

	arr := [2]float64{1, 2}
	assert.Equal(t, arr, Clone(arr))

	assert.Nil(t, Clone(nil))
	assert.Equal(t, "s", Clone("s"))
}

type layer struct {
	Temps []float64
	Peak  *float64
	label string
}

type ring struct {
	Next *ring
	V    int
}

func TestClone_StructsAndPointers(t *testing.T) {
	peak := 30.0
	src := layer{Temps: []float64{20, 21}, Peak: &peak, label: "wall"}
	dst := Clone(src).(layer)
	src.Temps[0] = 99
	*src.Peak = 99
	assert.Equal(t, []float64{20, 21}, dst.Temps)
	assert.Equal(t, 30.0, *dst.Peak)
	assert.Equal(t, "wall", dst.label)

	p := &layer{Temps: []float64{1}}
	q := Clone(p).(*layer)
	require.NotSame(t, p, q)
	p.Temps[0] = 5
	assert.Equal(t, []float64{1}, q.Temps)
	assert.Nil(t, q.Peak)

	var none *layer
	assert.Nil(t, Clone(none))

	r := &ring{V: 1}
	r.Next = r
	c := Clone(r).(*ring)
	require.NotSame(t, r, c)
	assert.Same(t, c, c.Next)
}

func TestSaveTimeStep_StructSnapshot(t *testing.T) {
	r := NewRegistry("wall")
	peak := 30.0
	out := Output(r, "layer", layer{Temps: []float64{20, 21}, Peak: &peak})
	ptr := Output(r, "peak", &peak)
	require.NoError(t, r.Err())

	r.SaveTimeStep(0)
	out.Get().Temps[0] = 99
	*out.Get().Peak = 99
	*ptr.Get() = 50

	series, ok := r.Series("layer")
	require.True(t, ok)
	saved := series[0].(layer)
	assert.Equal(t, []float64{20, 21}, saved.Temps)
	assert.Equal(t, 30.0, *saved.Peak)

	series, ok = r.Series("peak")
	require.True(t, ok)
	assert.Equal(t, 30.0, *series[0].(*float64))
	assert.Equal(t, 30.0, peak, "declaring a field copies its default")
}

func TestDistance(t *testing.T) {
	d, ok := Distance(1.0, 1.5)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, d, 1e-12)

	d, ok = Distance([]float64{1, 2}, []float64{1, 5})
	assert.True(t, ok)
	assert.InDelta(t, 3, d, 1e-12)

	_, ok = Distance([]float64{1}, []float64{1, 2})
	assert.False(t, ok)

	d, _ = Distance(math.NaN(), 1.0)
	assert.True(t, math.IsInf(d, 1))
}

func TestTracker(t *testing.T) {
	r := NewRegistry("zone")
	temp := Output(r, "t", 20.0, WithConvergence(1e-3, 0))
	Output(r, "untracked", 0.0)
	tr := NewTracker(r)

	require.Len(t, tr.Fields(), 1)

	assert.False(t, tr.Converged(1), "first pass has nothing to compare against")
	temp.Set(20.5)
	assert.False(t, tr.Converged(2))
	temp.Set(20.5001)
	assert.True(t, tr.Converged(3))

	tr.Reset()
	assert.False(t, tr.Converged(1))
}

func TestTracker_FieldIterationCap(t *testing.T) {
	r := NewRegistry("zone")
	temp := Output(r, "t", 0.0, WithConvergence(1e-9, 2))
	tr := NewTracker(r)

	for i := 1; i <= 2; i++ {
		temp.Set(float64(i))
		assert.False(t, tr.Converged(i))
	}
	temp.Set(10)
	assert.True(t, tr.Converged(3))
}

func TestTracker_Empty(t *testing.T) {
	tr := NewTracker(NewRegistry("m"))
	assert.True(t, tr.Converged(1))
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "input", RoleInput.String())
	assert.Equal(t, "output", RoleOutput.String())
	assert.Equal(t, "parameter", RoleParameter.String())
	assert.Equal(t, "unknown", Role(9).String())
}
