// Package flight runs value-producing computations at most once under
// concurrent access.
//
// A [Cell] owns one computation. The first caller of [Cell.Get] runs the
// producer inline; every other caller blocks until that run completes and then
// receives the same value. A [Group] maps keys to cells, installing exactly one
// cell per key even when many goroutines ask for the same new key at once.
//
// A [Loader] puts a group in front of a [Store] so concurrent cache misses for a
// key trigger one backend computation and one write:
//
//	ctx := context.Background()
//	l := flight.NewLoader(flight.NewMemoryStore(ctx))
//	body, err := l.Remember(ctx, "report:daily", time.Minute, func(ctx context.Context) ([]byte, error) {
//		return buildReport(ctx)
//	})
//
// A failed producer does not poison its cell: the error is returned to the
// caller that ran it and to every caller waiting on that attempt, and the cell
// goes back to [StateEmpty] so the next caller tries again.
package flight
