// Package xrerrors defines the error categories of spec §7: configuration,
// input-validation, not-found, corruption and parser-failure are modeled
// as comparable sentinels usable with errors.Is, following the teacher's
// own fmt.Errorf("...: %w", err) wrapping idiom (see migrations/migrations.go,
// eth/stagedsync/stage_log_index.go).
package xrerrors

import "errors"

// Sentinel categories. Configuration and Corruption are fatal — callers
// exit the process on them. NotFound is never returned by query APIs
// (those return empty results instead, per spec §7); it is reserved for
// store-open failures (missing data directory).
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrInputValidation = errors.New("input validation error")
	ErrNotFound        = errors.New("not found")
	ErrCorruption      = errors.New("codec corruption")
	ErrParserFailure   = errors.New("parser failure")
)

// ValidationError carries the offending field name per spec §7
// ("reject with a dedicated error variant carrying the offending field
// name; never propagate to core APIs").
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}

func (e *ValidationError) Unwrap() error { return ErrInputValidation }

func NewValidationError(field, value string) error {
	return &ValidationError{Field: field, Value: value}
}

// CorruptionError marks a key whose stored record failed to parse. Per
// spec §7 this is fatal — callers should abort rather than heuristically
// repair.
type CorruptionError struct {
	Bucket string
	Key    string
	Cause  error
}

func (e *CorruptionError) Error() string {
	return "corrupt record in " + e.Bucket + " at key " + e.Key + ": " + e.Cause.Error()
}

func (e *CorruptionError) Unwrap() error { return ErrCorruption }

func NewCorruptionError(bucket, key string, cause error) error {
	return &CorruptionError{Bucket: bucket, Key: key, Cause: cause}
}
