package props

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPropertyStartsEmpty(t *testing.T) {
	p := NewMapProperty[string, int]()

	v, err := p.Get()
	require.NoError(t, err)
	assert.Empty(t, v)

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.True(t, present)
}

func TestMapPropertyLastValueWinsFirstPositionKept(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.Put("b", 2)
	p.Put("a", 3)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 2}, v)

	keys, err := p.KeySet().Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestMapPropertyPutAll(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.PutAll(map[string]int{"a": 10})
	p.PutAllProvider(Of(map[string]int{"b": 2}))

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 10, "b": 2}, v)
}

func TestMapPropertySetReplacesAccumulation(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.Set(map[string]int{"x": 9})
	p.Put("y", 8)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 9, "y": 8}, v)
}

func TestMapPropertySetNilUnsets(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.Set(nil)

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)

	p.Put("b", 2)
	present, err = p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyMissingValueProviderAbsorbsWhole(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.PutProvider("b", Missing[int]())

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyEmptyLiteralAndMissingProviderIsMissing(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.PutAll(map[string]int{})
	p.PutAllProvider(Missing[map[string]int]())

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyConventionAndUnset(t *testing.T) {
	p := NewMapProperty[string, int]().Convention(map[string]int{"x": 9})
	p.Set(map[string]int{"a": 1})

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, v)

	p.Unset()
	v, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 9}, v)
}

func TestMapPropertyUnsetWithoutConventionIsMissing(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.Unset()

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)

	_, err = p.Get()
	var missing *MissingValueError
	require.ErrorAs(t, err, &missing)
}

func TestMapPropertyWithActualValueExtendsConvention(t *testing.T) {
	p := NewMapProperty[string, int]().Convention(map[string]int{"x": 9})
	p.WithActualValue(func(m *MapMutator[string, int]) {
		m.Put("a", 1)
	})

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 9, "a": 1}, v)
}

func TestMapPropertyNilKeyAndValueMessagesDiffer(t *testing.T) {
	p := NewMapProperty[*string, *int]().Named("env")

	key := "k"
	value := 1

	assert.PanicsWithError(t,
		invalidArgumentf("cannot add an entry with a null key to map property 'env'").Error(),
		func() { p.Put(nil, &value) })
	assert.PanicsWithError(t,
		invalidArgumentf("cannot add an entry with a null value to map property 'env'").Error(),
		func() { p.Put(&key, nil) })
}

func TestMapPropertyGetting(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.Put("b", 2)

	v, err := p.Getting("a").Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	present, err := p.Getting("nope").IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyGettingMissingMap(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Set(nil)

	present, err := p.Getting("a").IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyGettingIsLive(t *testing.T) {
	p := NewMapProperty[string, int]()
	entry := p.Getting("a")

	present, err := entry.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)

	p.Put("a", 5)
	v, err := entry.Get()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestMapPropertyKeySetDoesNotResolveEntryValues(t *testing.T) {
	calls := 0
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.PutProvider("b", Provide(func(*EvalCtx) (int, error) {
		calls++
		return 2, nil
	}))

	keys, err := p.KeySet().Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, 0, calls)

	present, err := p.KeySet().IsPresent()
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, 0, calls)
}

func TestMapPropertyKeySetMissingWhenMapMissing(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Set(nil)

	present, err := p.KeySet().IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyKeySetRequiresMapProviders(t *testing.T) {
	// Keys contributed through whole-map providers are only known by
	// resolving the provider.
	p := NewMapProperty[string, int]()
	p.PutAllProvider(Of(map[string]int{"a": 1}))

	keys, err := p.KeySet().Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}

func TestMapPropertyExecutionTimeValueMergesFixed(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.PutProvider("b", Of(2))
	p.Put("a", 3)

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	require.True(t, etv.HasFixedValue())
	assert.Equal(t, map[string]int{"a": 3, "b": 2}, etv.FixedValue())
}

func TestMapPropertyExecutionTimeValueMissingPart(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.PutProvider("b", Missing[int]())

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	assert.True(t, etv.IsMissing())
}

func TestMapPropertyExecutionTimeValueChangingPart(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.PutProvider("b", Provide(func(*EvalCtx) (int, error) { return 2, nil }))

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	require.True(t, etv.IsChanging())

	v, err := etv.ChangingValue().Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, v)
}

func TestMapPropertyFinalize(t *testing.T) {
	calls := 0
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.PutProvider("b", Provide(func(*EvalCtx) (int, error) {
		calls++
		return 2, nil
	}))

	require.NoError(t, p.FinalizeValue())
	require.NoError(t, p.FinalizeValue())
	assert.Equal(t, 1, calls)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, v)
	assert.Equal(t, 1, calls)

	keys, err := p.KeySet().Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	assert.Panics(t, func() { p.Put("c", 3) })
}

func TestMapPropertyUpdate(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)

	p.Update(func(current Provider[map[string]int]) Provider[map[string]int] {
		return Map(current, func(m map[string]int) map[string]int {
			out := make(map[string]int, len(m)+1)
			for k, v := range m {
				out[k] = v * 10
			}
			return out
		})
	})
	p.Put("b", 2)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 10, "b": 2}, v)
}

func TestMapPropertyUpdateSeesUpstreamChanges(t *testing.T) {
	upstream := NewProperty[int]().Named("upstream")
	upstream.Set(1)

	p := NewMapProperty[string, int]()
	p.PutProvider("a", upstream)

	p.Update(func(current Provider[map[string]int]) Provider[map[string]int] {
		return Map(current, func(m map[string]int) map[string]int { return m })
	})

	upstream.Set(5)
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 5}, v)
}

func TestMapPropertyUpdateNilUnsets(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	p.Update(func(Provider[map[string]int]) Provider[map[string]int] { return nil })

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyFromState(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.FromState(FixedExecutionTimeValue(map[string]int{"a": 1}))

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, v)

	p2 := NewMapProperty[string, int]()
	p2.FromState(MissingExecutionTimeValue[map[string]int]())
	present, err := p2.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMapPropertyPutAfterFromStateFixedPanics(t *testing.T) {
	p := NewMapProperty[string, int]().Named("env")
	p.FromState(FixedExecutionTimeValue(map[string]int{"a": 1}))

	defer func() {
		err := recover()
		require.NotNil(t, err)
		var unsupported *UnsupportedOperationError
		require.ErrorAs(t, err.(error), &unsupported)
		assert.Contains(t, unsupported.Error(), "map property 'env'")
	}()
	p.Put("b", 2)
}

func TestMapPropertySideEffectsFireOnExtractionOnly(t *testing.T) {
	fired := 0
	p := NewMapProperty[string, int]()
	p.PutProvider("a", WithSideEffect(Of(1), func(int) { fired++ }))

	_, err := p.IsPresent()
	require.NoError(t, err)
	_, err = p.KeySet().Get()
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	_, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestMapPropertySelfReferenceDetected(t *testing.T) {
	p := NewMapProperty[string, int]().Named("env")
	p.PutAllProvider(Provide(func(ctx *EvalCtx) (map[string]int, error) {
		return Eval(ctx, p)
	}))

	_, err := p.Get()
	var circular *CircularEvaluationError
	require.ErrorAs(t, err, &circular)
	assert.Equal(t, []string{"map property 'env'", "map property 'env'"}, circular.Chain)
}
