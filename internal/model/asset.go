package model

import "time"

// AssetDescriptor is one object found in the external catalog.
// Catalog listings are ordered most-recent-first.
type AssetDescriptor struct {
	Kind      AssetKind  `json:"kind"`
	StableID  string     `json:"stableId"`
	URL       string     `json:"url"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Catalog holds the recent audio and image listings of one folder.
type Catalog struct {
	Audio  []AssetDescriptor `json:"audio"`
	Images []AssetDescriptor `json:"images"`
}
