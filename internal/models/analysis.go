package models

import (
	"time"

	"github.com/google/uuid"
)

type InputKind string

const (
	InputKindImage InputKind = "image"
	InputKindTable InputKind = "table"
)

// Analysis is one answered request, kept as history.
type Analysis struct {
	ID        uuid.UUID `db:"id"`
	SessionID string    `db:"session_id"`
	Kind      InputKind `db:"kind"`
	FileName  string    `db:"file_name"`
	FileSize  int64     `db:"file_size"`
	Provider  string    `db:"provider"`
	Model     string    `db:"model"`
	Insights  string    `db:"insights"`
	ObjectKey string    `db:"object_key"`
	CreatedAt time.Time `db:"created_at"`
}
