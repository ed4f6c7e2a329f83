package model

import "time"

// GenerateRequest represents the request to start a song generation
type GenerateRequest struct {
	Prompt            string `json:"prompt,omitempty" validate:"max=2000"`
	Lyrics            string `json:"lyrics,omitempty" validate:"max=10000"`
	DescribedLyrics   string `json:"describedLyrics,omitempty" validate:"max=2000"`
	FullDescribedSong string `json:"fullDescribedSong,omitempty" validate:"max=2000"`
	Instrumental      bool   `json:"instrumental"`
}

// Inputs converts the request into job inputs.
func (r *GenerateRequest) Inputs() Inputs {
	return Inputs{
		Prompt:            r.Prompt,
		Lyrics:            r.Lyrics,
		DescribedLyrics:   r.DescribedLyrics,
		FullDescribedSong: r.FullDescribedSong,
		Instrumental:      r.Instrumental,
	}
}

// IsEmpty reports whether no input field carries content.
func (r *GenerateRequest) IsEmpty() bool {
	return r.Prompt == "" && r.Lyrics == "" && r.DescribedLyrics == "" && r.FullDescribedSong == ""
}

// GenerateStartResponse represents the response for a started generation
type GenerateStartResponse struct {
	JobID     string    `json:"jobId"`
	Title     string    `json:"title"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse represents the public view of a job
type JobStatusResponse struct {
	JobID       string    `json:"jobId"`
	Title       string    `json:"title"`
	Status      JobStatus `json:"status"`
	Mode        InputMode `json:"mode"`
	HasAudio    bool      `json:"hasAudio"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	ListenCount int64     `json:"listenCount"`
	Published   bool      `json:"published"`
	Error       *string   `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PlayURLResponse represents a resolved playable URL
type PlayURLResponse struct {
	JobID string `json:"jobId"`
	URL   string `json:"url"`
}

// CoverURLResponse represents a resolved cover thumbnail URL
type CoverURLResponse struct {
	JobID string `json:"jobId"`
	URL   string `json:"url"`
}

// PublishRequest toggles the published flag
type PublishRequest struct {
	Published *bool `json:"published" validate:"required"`
}

// JobListResponse lists the requester's jobs, newest first
type JobListResponse struct {
	Jobs []JobStatusResponse `json:"jobs"`
}
