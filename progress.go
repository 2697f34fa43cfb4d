package apkrepack

import "github.com/meigma/apkrepack/internal/ziptype"

// Re-export progress types from internal/ziptype.
type (
	// ProgressEvent represents a progress update during a build.
	ProgressEvent = ziptype.ProgressEvent

	// ProgressStage identifies the current phase of a build.
	ProgressStage = ziptype.ProgressStage

	// ProgressFunc receives progress updates during a build.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = ziptype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageReading indicates the original archive is being parsed.
	StageReading = ziptype.StageReading

	// StageCompressing indicates entries are being classified and compressed.
	StageCompressing = ziptype.StageCompressing

	// StageAssembling indicates an archive pass is being written.
	StageAssembling = ziptype.StageAssembling

	// StageSigning indicates the signing artifacts are being produced.
	StageSigning = ziptype.StageSigning

	// StageDone indicates the signed archive is complete.
	StageDone = ziptype.StageDone
)
