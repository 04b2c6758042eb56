// Package domain contains the core business entities of the task tracker:
// tasks, their audit history and comments, categories, and users with their
// notification preferences. It is independent of storage and transport.
package domain
