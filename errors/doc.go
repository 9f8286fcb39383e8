// Package errors provides the error taxonomy shared by units, composers and
// the HTTP surface. Every error is an AppError carrying a machine-readable
// code, an HTTP status mapping and retryable detection following RFC 7807.
//
// Leaf units raise StageFailure, composers raise CompositionFailure, and the
// retry and fallback decorators raise ExhaustionFailure once every attempt is
// spent. Composers add context with fmt.Errorf("%w") so errors.As still
// yields the original kind.
package errors
