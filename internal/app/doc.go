// Package app provides the application service layer.
//
// Orchestrates use cases: login and tokens, the participant directory with CSV import/export,
// templates and their e-cards, blast delivery, analytics.
// Sits between HTTP handlers and domain repositories. Depends on domain interfaces, not concrete implementations.
package app
