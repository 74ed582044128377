// Package speaker stores enrolled speakers and the subclips attributed to
// them. Every subclip attributed to a known speaker is also a reference
// for later identifications.
package speaker

import (
	"embed"
	"time"
)

// Unknown is the speaker id of subclips nobody could be matched to.
const Unknown int64 = 0

// Migrations holds the schema, applied by database.Component.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsPath is the directory inside Migrations.
const MigrationsPath = "migrations"

type Speaker struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Subclip is one attributed speech segment, keyed by its content hash.
type Subclip struct {
	Hash        string    `gorm:"primaryKey" json:"hash"`
	SpeakerID   int64     `gorm:"not null" json:"speaker_id"`
	EvaluatedBy string    `json:"evaluated_by"`
	Requester   string    `json:"requester"`
	Score       float64   `json:"score"`
	SegmentJSON string    `gorm:"column:segment_json" json:"segment_json"`
	RecordedAt  time.Time `json:"recorded_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Reference is a subclip usable as comparison material.
type Reference struct {
	Hash       string    `json:"hash"`
	SpeakerID  int64     `json:"speaker_id"`
	RecordedAt time.Time `json:"recorded_at"`
}
