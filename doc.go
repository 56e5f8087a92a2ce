// Package props provides a lazy, composable value-evaluation engine for Go:
// deferred computations (providers) and mutable holders (properties) with
// convention fallback, collection accumulation, deferred side effects, cycle
// detection, and snapshot-based collapsing for later reuse.
//
// # Overview
//
// Props organizes code around three core concepts:
//
//  1. Providers: lazy, possibly-absent computations of a value
//  2. Properties: mutable holders of a provider, with convention fallback
//     and one-time finalization
//  3. Execution-time values: collapsed snapshots consumed by caching layers
//
// # Basic Usage
//
// Compose providers without evaluating anything:
//
//	port := props.Of(8080)
//
//	addr := props.Map(port, func(p int) string {
//	    return fmt.Sprintf(":%d", p)
//	})
//
//	v, err := addr.Get() // ":8080", computed now
//
// Hold mutable configuration in properties:
//
//	host := props.NewProperty[string]().Named("host")
//	host.Convention("localhost")
//
//	h, _ := host.Get() // "localhost"
//	host.Set("example.com")
//	h, _ = host.Get() // "example.com"
//	host.Unset()
//	h, _ = host.Get() // "localhost" again
//
// # Collections
//
// List, set and map properties accumulate contributions lazily, in
// left-to-right order:
//
//	args := props.NewListProperty[string]().Named("args")
//	args.Add("-v")
//	args.AddProvider(props.Provide(func(ctx *props.EvalCtx) (string, error) {
//	    return computeFlag(), nil
//	}))
//
//	all, err := args.Get() // contributions resolved now
//
// A contribution that cannot resolve makes the whole collection missing;
// partial results are never observed.
//
// # Missing Values
//
// Absence is not an error: it propagates silently through map, flatMap and
// collection merging, and surfaces only when a presence-demanding accessor
// is invoked:
//
//	p := props.Missing[int]()
//	ok, _ := p.IsPresent() // false
//	_, err := p.Get()      // *MissingValueError
//	v := p.GetOrElse(42)   // 42
//
// # Side Effects
//
// Effects attached to a provider fire when a consumer extracts the payload,
// exactly once per extraction. Presence checks and snapshot collapsing never
// fire them:
//
//	p := props.WithSideEffect(props.Of("out.txt"), func(path string) {
//	    markConsumed(path)
//	})
//
//	p.IsPresent() // no effect
//	p.Get()       // effect fires
//
// # Finalization
//
// FinalizeValue computes a property's value once and locks the property.
// Subsequent reads return the cached snapshot, and any further mutation
// panics with *UnsupportedOperationError:
//
//	if err := host.FinalizeValue(); err != nil {
//	    return err
//	}
//	host.Set("other") // panics
//
// # Cycle Detection
//
// Every property guards its evaluation with an owner scope. A chain that
// re-enters an open owner fails with *CircularEvaluationError carrying the
// full chain of owners, instead of exhausting the call stack. Factory
// functions passed to Provide receive the evaluation chain and must route
// nested reads through Eval so detection spans them:
//
//	a := props.NewProperty[int]().Named("a")
//	a.SetProvider(props.Provide(func(ctx *props.EvalCtx) (int, error) {
//	    return props.Eval(ctx, a) // *CircularEvaluationError
//	}))
//
// # Snapshots
//
// CalculateExecutionTimeValue collapses a provider to the cheapest
// representation a cache can store: missing, a fixed payload, or a changing
// handle that must be re-evaluated on demand. FromState rehydrates a
// property from a stored snapshot:
//
//	state, err := host.CalculateExecutionTimeValue()
//	// ... persist and restore ...
//	restored := props.NewProperty[string]()
//	restored.FromState(state)
package props
