package model

// Job status
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job in status s may move to next.
// Re-asserting the current status is allowed and is a no-op.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	return s == JobStatusProcessing && next.IsTerminal()
}

// Input modes, in endpoint precedence order
type InputMode string

const (
	InputModeFullDescribedSong InputMode = "full_described_song"
	InputModeDescribedLyrics   InputMode = "described_lyrics"
	InputModeLyrics            InputMode = "lyrics"
)

// Asset kinds
type AssetKind string

const (
	AssetKindAudio AssetKind = "audio"
	AssetKindImage AssetKind = "image"
)
