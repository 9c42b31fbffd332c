// Package domain defines the core domain types and interfaces.
//
// Files are concept-oriented (admin.go, participant.go, blast.go, etc.) and hold
// shared types plus the repository and port interfaces their consumers depend on.
// No implementation code, just contracts.
package domain
