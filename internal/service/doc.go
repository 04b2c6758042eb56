// Package service implements the task tracker's use cases on top of the
// store interfaces.
//
// TaskService owns the task lifecycle: every mutation runs in one
// transaction that writes the task, its history rows and any comment, and
// only after commit hands a job to the notify.Notifier. Notification failures
// never fail the request. CategoryService manages per-user categories and
// moves tasks to the default category when one is deleted. UserService covers
// registration, credentials, password reset and the chat account link.
//
// Services translate store errors into ServiceError values carrying the
// operation name, so the API layer can map them to status codes without
// leaking persistence details.
package service
