package storage

import (
	"time"

	"github.com/google/uuid"
)

// GameRecord is one persisted session: the whole aggregate as a jsonb
// document, plus indexed columns for the listing queries. Ships and shots
// live inside the document and are not separately addressable.
type GameRecord struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Status    string     `gorm:"index"`
	Player1ID *uuid.UUID `gorm:"type:uuid;index"`
	Player2ID *uuid.UUID `gorm:"type:uuid;index"`
	WinnerID  *uuid.UUID `gorm:"type:uuid"`
	Document  []byte     `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
