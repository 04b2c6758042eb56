// Package mocks provides shared test doubles for the store, chat and notify
// interfaces.
//
// The store fakes are in-memory and safe for concurrent use; WithTx returns
// the same instance so a service under test sees its own writes. Each fake
// exposes function fields (CreateFn, UpdateFn, ...) that replace the default
// behavior when set:
//
//	tasks := mocks.NewMockTaskStore()
//	tasks.UpdateFn = func(ctx context.Context, t *domain.Task) error {
//	    return store.ErrConflict
//	}
package mocks
