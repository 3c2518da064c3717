// Package flighttest provides a reusable contract suite for flight.Store
// implementations.
//
// Example pattern:
//
//	func TestRedisStoreContract(t *testing.T) {
//		client := redis.NewClient(&redis.Options{Addr: addr})
//		store := flight.NewRedisStore(context.Background(), client, flight.WithPrefix("test"))
//
//		// Namespace keys per test and tune TTL waits for backend semantics as needed.
//		flighttest.RunStoreContract(t, store, flighttest.Options{
//			CaseName: t.Name(),
//			TTL:      time.Second,
//			TTLWait:  1500 * time.Millisecond,
//		})
//	}
package flighttest
