// Package store defines the persistence gateway: interfaces for tasks,
// history, comments, categories, users and reset tokens, plus the
// transaction helper and error vocabulary shared by every implementation.
// Services depend on these interfaces, never on a concrete database.
package store
