// Package api serves the task tracker's HTTP interface: JSON handlers for
// auth, tasks, categories and users, the signed chat callback endpoints, and
// the admin sweep trigger. Handlers decode and validate requests, call the
// service layer and map its errors to status codes with safe messages.
package api
