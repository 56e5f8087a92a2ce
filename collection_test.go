package props

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPropertyStartsEmpty(t *testing.T) {
	p := NewListProperty[string]()

	v, err := p.Get()
	require.NoError(t, err)
	assert.Empty(t, v)

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.True(t, present)
}

func TestListPropertyConcatenatesInOrder(t *testing.T) {
	p := NewListProperty[string]()
	p.Add("a")
	p.AddAll("b", "c")
	p.AddProvider(Of("d"))
	p.AddAllProvider(Of([]string{"e", "f"}))

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, v)
}

func TestListPropertySetReplacesAccumulation(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.Set([]int{7, 8})
	p.Add(9)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9}, v)
}

func TestListPropertySetNilUnsets(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.Set(nil)

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)

	// An unset collection cannot be rescued by further contributions.
	p.Add(2)
	present, err = p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestListPropertyMissingContributionAbsorbsWhole(t *testing.T) {
	p := NewListProperty[string]().Named("args")
	p.Add("a")
	p.AddProvider(Missing[string]())
	p.Add("b")

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)

	_, err = p.Get()
	var missing *MissingValueError
	require.ErrorAs(t, err, &missing)
}

func TestListPropertyEmptyIsIdentity(t *testing.T) {
	viaEmpty := NewListProperty[int]().Empty()
	viaEmpty.Add(1)

	fresh := NewListProperty[int]()
	fresh.Add(1)

	a, err := viaEmpty.Get()
	require.NoError(t, err)
	b, err := fresh.Get()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestListPropertyConvention(t *testing.T) {
	p := NewListProperty[int]().Convention([]int{9})

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{9}, v)

	p.Set([]int{1})
	v, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, v)

	p.Unset()
	v, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{9}, v)
}

func TestListPropertyUnsetWithoutConventionIsMissing(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.Unset()

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestListPropertyAddDoesNotExtendConvention(t *testing.T) {
	p := NewListProperty[int]().Convention([]int{9})
	p.Add(1)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, v)
}

func TestListPropertyWithActualValueExtendsConvention(t *testing.T) {
	p := NewListProperty[int]().Convention([]int{9})
	p.WithActualValue(func(m *CollectionMutator[int]) {
		m.Add(1)
	})

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{9, 1}, v)
}

func TestListPropertyElementProvidersAreLive(t *testing.T) {
	n := 0
	p := NewListProperty[int]()
	p.AddProvider(Provide(func(*EvalCtx) (int, error) {
		n++
		return n, nil
	}))

	first, err := p.Get()
	require.NoError(t, err)
	second, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, first)
	assert.Equal(t, []int{2}, second)
}

func TestListPropertySideEffectsFireOnExtractionOnly(t *testing.T) {
	fired := 0
	p := NewListProperty[int]()
	p.AddProvider(WithSideEffect(Of(1), func(int) { fired++ }))

	_, err := p.IsPresent()
	require.NoError(t, err)
	_, err = p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	_, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestListPropertyExecutionTimeValueMergesFixed(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.AddProvider(Of(2))
	p.AddAll(3)

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	require.True(t, etv.HasFixedValue())
	assert.Equal(t, []int{1, 2, 3}, etv.FixedValue())
	assert.False(t, etv.HasChangingContent())
}

func TestListPropertyExecutionTimeValueChangingContentIsOrOfParts(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.AddAllProvider(FixedExecutionTimeValue([]int{2}).WithChangingContent().ToProvider())

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	require.True(t, etv.HasFixedValue())
	assert.True(t, etv.HasChangingContent())
}

func TestListPropertyExecutionTimeValueChangingPart(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.AddProvider(Provide(func(*EvalCtx) (int, error) { return 2, nil }))

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	require.True(t, etv.IsChanging())

	v, err := etv.ChangingValue().Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)
}

func TestListPropertyExecutionTimeValueMissingPart(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.AddProvider(Missing[int]())

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	assert.True(t, etv.IsMissing())
}

func TestListPropertyExecutionTimeValueAggregatesSideEffects(t *testing.T) {
	var fired []string
	p := NewListProperty[string]()
	p.AddProvider(WithSideEffect(Of("a"), func(v string) { fired = append(fired, v) }))
	p.AddProvider(WithSideEffect(Of("b"), func(v string) { fired = append(fired, v) }))

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	require.True(t, etv.HasFixedValue())
	assert.Empty(t, fired)

	_, err = etv.ToProvider().Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fired)
}

func TestListPropertyFinalize(t *testing.T) {
	calls := 0
	p := NewListProperty[int]()
	p.AddProvider(Provide(func(*EvalCtx) (int, error) {
		calls++
		return calls, nil
	}))

	require.NoError(t, p.FinalizeValue())
	require.NoError(t, p.FinalizeValue())

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, v)
	assert.Equal(t, 1, calls)

	assert.Panics(t, func() { p.Add(2) })
}

func TestListPropertyUpdate(t *testing.T) {
	p := NewListProperty[string]()
	p.Add("a")

	p.Update(func(current Provider[[]string]) Provider[[]string] {
		return Map(current, func(vs []string) []string {
			out := make([]string, len(vs))
			for i, v := range vs {
				out[i] = v + "!"
			}
			return out
		})
	})
	p.Add("b")

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a!", "b"}, v)
}

func TestListPropertyUpdateNilUnsets(t *testing.T) {
	p := NewListProperty[int]()
	p.Add(1)
	p.Update(func(Provider[[]int]) Provider[[]int] { return nil })

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestListPropertyFromState(t *testing.T) {
	p := NewListProperty[int]()
	p.FromState(FixedExecutionTimeValue([]int{1, 2}))

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)

	p2 := NewListProperty[int]()
	p2.FromState(MissingExecutionTimeValue[[]int]())
	present, err := p2.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestListPropertyAddAfterFromStateFixedPanics(t *testing.T) {
	p := NewListProperty[int]().Named("args")
	p.FromState(FixedExecutionTimeValue([]int{1}))

	defer func() {
		err := recover()
		require.NotNil(t, err)
		var unsupported *UnsupportedOperationError
		require.ErrorAs(t, err.(error), &unsupported)
		assert.Contains(t, unsupported.Error(), "list property 'args'")
	}()
	p.Add(2)
}

func TestListPropertyNilElementPanics(t *testing.T) {
	p := NewListProperty[*int]()

	assert.Panics(t, func() { p.Add(nil) })
	assert.Panics(t, func() { p.AddProvider(nil) })
}

func TestListPropertyMapTransform(t *testing.T) {
	p := NewListProperty[int]()
	p.AddAll(1, 2, 3)

	joined := Map[[]int, string](p, func(vs []int) string {
		out := ""
		for _, v := range vs {
			out += strconv.Itoa(v)
		}
		return out
	})

	v, err := joined.Get()
	require.NoError(t, err)
	assert.Equal(t, "123", v)
}

func TestSetPropertyDropsDuplicates(t *testing.T) {
	p := NewSetProperty[string]()
	p.Add("a")
	p.Add("b")
	p.Add("a")
	p.AddAll("c", "b")

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v)
}

func TestSetPropertyFirstOccurrenceWins(t *testing.T) {
	p := NewSetProperty[int]()
	p.AddAll(3, 1)
	p.AddAllProvider(Of([]int{1, 2, 3, 4}))

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2, 4}, v)
}

func TestSetPropertyConventionAndUnset(t *testing.T) {
	p := NewSetProperty[int]().Convention([]int{9})
	p.Set([]int{1, 1, 2})

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)

	p.Unset()
	v, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{9}, v)
}

func TestSetPropertyExecutionTimeValueDeduplicates(t *testing.T) {
	p := NewSetProperty[int]()
	p.Add(1)
	p.AddProvider(Of(1))
	p.Add(2)

	etv, err := p.CalculateExecutionTimeValue()
	require.NoError(t, err)
	require.True(t, etv.HasFixedValue())
	assert.Equal(t, []int{1, 2}, etv.FixedValue())
}

func TestSetPropertyMissingContributionAbsorbsWhole(t *testing.T) {
	p := NewSetProperty[int]()
	p.Add(1)
	p.AddProvider(Missing[int]())

	present, err := p.IsPresent()
	require.NoError(t, err)
	assert.False(t, present)
}
