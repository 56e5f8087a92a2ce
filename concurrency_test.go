package props

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestFinalizedPropertySafeForConcurrentReads(t *testing.T) {
	p := NewProperty[int]().Named("port")
	p.Set(8080)
	require.NoError(t, p.FinalizeValue())

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			v, err := p.Get()
			if err != nil {
				return err
			}
			assert.Equal(t, 8080, v)
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestConcurrentChainsDoNotCrossDetectCycles(t *testing.T) {
	// Each goroutine evaluates its own graph; a scope open in one chain
	// must never trip cycle detection in another.
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			upstream := NewProperty[int]().Named("shared name")
			upstream.Set(1)

			p := NewProperty[int]().Named("shared name")
			p.SetProvider(Map[int, int](upstream, func(v int) int { return v + 1 }))

			for j := 0; j < 100; j++ {
				v, err := p.Get()
				if err != nil {
					return err
				}
				assert.Equal(t, 2, v)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestConcurrentReadsOfFinalizedCollection(t *testing.T) {
	p := NewListProperty[string]()
	p.AddAll("a", "b")
	require.NoError(t, p.FinalizeValue())

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			v, err := p.Get()
			if err != nil {
				return err
			}
			assert.Equal(t, []string{"a", "b"}, v)
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestConcurrentExecutionTimeValueReads(t *testing.T) {
	p := NewMapProperty[string, int]()
	p.Put("a", 1)
	require.NoError(t, p.FinalizeValue())

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			etv, err := p.CalculateExecutionTimeValue()
			if err != nil {
				return err
			}
			assert.True(t, etv.HasFixedValue())
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
