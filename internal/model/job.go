package model

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const UntitledTitle = "Untitled"

// Inputs is the generation input. Which fields matter depends on Mode.
type Inputs struct {
	Prompt            string `json:"prompt,omitempty"`
	Lyrics            string `json:"lyrics,omitempty"`
	DescribedLyrics   string `json:"describedLyrics,omitempty"`
	FullDescribedSong string `json:"fullDescribedSong,omitempty"`
	Instrumental      bool   `json:"instrumental"`
}

// Mode picks the input mode by fixed precedence:
// full described song, then described lyrics, then plain lyrics.
func (in Inputs) Mode() InputMode {
	switch {
	case in.FullDescribedSong != "":
		return InputModeFullDescribedSong
	case in.DescribedLyrics != "":
		return InputModeDescribedLyrics
	default:
		return InputModeLyrics
	}
}

// DeriveTitle returns the first non-empty of FullDescribedSong and
// DescribedLyrics with its first character upper-cased, or "Untitled".
func DeriveTitle(in Inputs) string {
	title := in.FullDescribedSong
	if title == "" {
		title = in.DescribedLyrics
	}
	if title == "" {
		return UntitledTitle
	}
	r, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(r)) + title[size:]
}

// Job is one generation request and its lifecycle record.
type Job struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"ownerId"`
	Title         string     `json:"title"`
	Inputs        Inputs     `json:"inputs"`
	GuidanceScale float64    `json:"guidanceScale"`
	Status        JobStatus  `json:"status"`
	AudioRef      string     `json:"audioRef,omitempty"`
	AudioURL      string     `json:"audioUrl,omitempty"`
	CoverRef      string     `json:"coverRef,omitempty"`
	CoverURL      string     `json:"coverUrl,omitempty"`
	ListenCount   int64      `json:"listenCount"`
	Published     bool       `json:"published"`
	Error         *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// CanRead reports whether requesterID may read the job.
func (j *Job) CanRead(requesterID string) bool {
	return j.OwnerID == requesterID || j.Published
}

// TitleMatches reports whether the title is usable for catalog matching.
func (j *Job) TitleMatches(stableID string) bool {
	title := strings.ToLower(strings.TrimSpace(j.Title))
	if title == "" {
		return false
	}
	return strings.Contains(strings.ToLower(stableID), title)
}

// JobUpdate is a partial update. Nil fields are left untouched.
type JobUpdate struct {
	Status    *JobStatus
	AudioRef  *string
	AudioURL  *string
	CoverRef  *string
	CoverURL  *string
	Published *bool
	Error     *string
}

// IsEmpty reports whether the update carries no field.
func (u JobUpdate) IsEmpty() bool {
	return u.Status == nil && u.AudioRef == nil && u.AudioURL == nil &&
		u.CoverRef == nil && u.CoverURL == nil && u.Published == nil && u.Error == nil
}

// Apply copies the update's fields onto job. The caller checks the
// status transition first.
func (u JobUpdate) Apply(job *Job, now time.Time) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.AudioRef != nil {
		job.AudioRef = *u.AudioRef
	}
	if u.AudioURL != nil {
		job.AudioURL = *u.AudioURL
	}
	if u.CoverRef != nil {
		job.CoverRef = *u.CoverRef
	}
	if u.CoverURL != nil {
		job.CoverURL = *u.CoverURL
	}
	if u.Published != nil {
		job.Published = *u.Published
	}
	if u.Error != nil {
		msg := *u.Error
		job.Error = &msg
	}
	job.UpdatedAt = &now
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
