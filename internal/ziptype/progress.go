package ziptype

// ProgressEvent represents a progress update during a repackaging build.
type ProgressEvent struct {
	// Stage identifies the current phase of the build.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// FilesDone is the number of entries completed in the current stage.
	FilesDone int

	// FilesTotal is the number of entries in the current stage.
	// Zero indicates the total is unknown.
	FilesTotal int
}

// ProgressStage identifies the current phase of a build.
type ProgressStage uint8

// Progress stages, in the order a build passes through them.
const (
	// StageReading indicates the original archive is being parsed.
	StageReading ProgressStage = iota

	// StageCompressing indicates entries are being classified and compressed.
	StageCompressing

	// StageAssembling indicates an archive pass is being written.
	StageAssembling

	// StageSigning indicates the signing artifacts are being produced.
	StageSigning

	// StageDone indicates the signed archive is complete.
	StageDone
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageReading:
		return "reading"
	case StageCompressing:
		return "compressing"
	case StageAssembling:
		return "assembling"
	case StageSigning:
		return "signing"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during a build.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
