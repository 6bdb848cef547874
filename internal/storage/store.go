package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bataille/internal/game"
)

// Store wraps a gorm DB instance and persists sessions as single documents.
// A nil *Store is safe to use: writes become no-ops and reads report not
// found, which keeps the server runnable without a database.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store helper from a gorm DB.
func NewStore(db *gorm.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// DB exposes the underlying gorm DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// sessionUpdateColumns are the columns refreshed when an upsert hits an
// existing row. created_at is deliberately absent so the row keeps its
// original creation time across saves.
var sessionUpdateColumns = []string{"status", "player1_id", "player2_id", "winner_id", "document", "updated_at"}

// SaveSession upserts the session row, refreshing the document and the
// indexed columns in one write.
func (s *Store) SaveSession(ctx context.Context, sess *game.Session) error {
	if s == nil {
		return nil
	}
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	rec := GameRecord{
		ID:       sess.ID,
		Status:   string(sess.Status),
		WinnerID: sess.Winner,
		Document: doc,
	}
	if len(sess.Players) > 0 {
		id := sess.Players[0].PlayerID
		rec.Player1ID = &id
	}
	if len(sess.Players) > 1 {
		id := sess.Players[1].PlayerID
		rec.Player2ID = &id
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(sessionUpdateColumns),
	}).Create(&rec).Error
}

// LoadSession fetches and decodes a persisted session.
func (s *Store) LoadSession(ctx context.Context, id uuid.UUID) (*game.Session, error) {
	if s == nil {
		return nil, game.ErrNotFound
	}
	var rec GameRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	return decode(&rec)
}

// ListByPlayer returns the player's sessions in any of the given statuses,
// newest first.
func (s *Store) ListByPlayer(ctx context.Context, playerID uuid.UUID, statuses []game.Status) ([]*game.Session, error) {
	if s == nil {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	var recs []GameRecord
	err := s.db.WithContext(ctx).
		Where("(player1_id = ? OR player2_id = ?) AND status IN ?", playerID, playerID, names).
		Order("updated_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*game.Session, 0, len(recs))
	for i := range recs {
		sess, err := decode(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func decode(rec *GameRecord) (*game.Session, error) {
	var sess game.Session
	if err := json.Unmarshal(rec.Document, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", rec.ID, err)
	}
	return &sess, nil
}
