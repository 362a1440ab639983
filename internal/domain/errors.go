package domain

import "errors"

// Engine errors - 計算引擎層錯誤
var (
	// ErrCancelled indicates the run was stopped by an exit request
	// Not a failure: results finished before cancellation are still valid
	ErrCancelled = errors.New("run cancelled")

	// ErrEmptyDigest indicates the hash pipeline produced no digest
	ErrEmptyDigest = errors.New("error computing checksum")

	// ErrFileTooLarge indicates a file exceeded the configured size limit
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// Store errors - 快照與基準檔錯誤
var (
	// ErrSnapshotNotFound indicates no snapshot exists at the well-known location
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupt indicates the snapshot could not be decoded
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrIncompatibleRoot indicates a snapshot was taken for a different root
	ErrIncompatibleRoot = errors.New("incompatible root")

	// ErrBaselineNotFound indicates the baseline file does not exist
	ErrBaselineNotFound = errors.New("baseline not found")

	// ErrBaselineCorrupt indicates the baseline file is malformed or truncated
	ErrBaselineCorrupt = errors.New("baseline corrupt")
)

// Verification errors - 驗證錯誤
var (
	// ErrRootMismatch indicates the target path is not the baseline's root
	ErrRootMismatch = errors.New("target does not match baseline root")

	// ErrUnresolvableTarget indicates the verification root could not be determined
	ErrUnresolvableTarget = errors.New("cannot determine verification root")
)

// Config errors - 設定錯誤
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrInvalidAlgorithm indicates an unknown or unusable hash algorithm
	ErrInvalidAlgorithm = errors.New("invalid algorithm")

	// ErrConflictingModes indicates calculate and verify were both requested
	ErrConflictingModes = errors.New("conflicting run modes")
)

// Run errors
var (
	// ErrRunInProgress indicates another run already holds the state directory
	ErrRunInProgress = errors.New("run already in progress")
)
