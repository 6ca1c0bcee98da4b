package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
)

// PostgresStore persists drafts and their picks through gorm. Pick rows are
// append-only; the optimistic version lives on the draft row.
type PostgresStore struct {
	db *gorm.DB
}

type draftRow struct {
	ID          string   `gorm:"primaryKey"`
	LeagueID    string   `gorm:"index"`
	Status      string
	CurrentPick int
	PickOrder   []string `gorm:"serializer:json"`
	TotalPicks  int
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (draftRow) TableName() string { return "drafts" }

type pickRow struct {
	ID          string `gorm:"primaryKey"`
	DraftID     string `gorm:"index"`
	PickNumber  int
	TeamID      string
	NHLPlayerID int64
	PlayerName  string
	Position    string
	NHLTeam     string
	Timestamp   time.Time
}

func (pickRow) TableName() string { return "draft_picks" }

func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true, // surface gorm.ErrDuplicatedKey on unique violations
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&draftRow{}, &pickRow{}); err != nil {
		return nil, fmt.Errorf("migrate draft tables: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateDraft(ctx context.Context, d draft.State) error {
	row := toDraftRow(d)
	row.Version = 1
	err := p.db.WithContext(ctx).Create(&row).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrExists
	}
	return err
}

func (p *PostgresStore) GetDraft(ctx context.Context, id string) (draft.State, int64, error) {
	var row draftRow
	err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return draft.State{}, 0, ErrNotFound
	}
	if err != nil {
		return draft.State{}, 0, err
	}
	return p.assemble(ctx, row)
}

func (p *PostgresStore) GetDraftByLeague(ctx context.Context, leagueID string) (draft.State, int64, error) {
	var row draftRow
	err := p.db.WithContext(ctx).First(&row, "league_id = ?", leagueID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return draft.State{}, 0, ErrNotFound
	}
	if err != nil {
		return draft.State{}, 0, err
	}
	return p.assemble(ctx, row)
}

func (p *PostgresStore) assemble(ctx context.Context, row draftRow) (draft.State, int64, error) {
	var picks []pickRow
	err := p.db.WithContext(ctx).
		Where("draft_id = ?", row.ID).
		Order("pick_number").
		Find(&picks).Error
	if err != nil {
		return draft.State{}, 0, err
	}

	st := draft.State{
		ID:          row.ID,
		LeagueID:    row.LeagueID,
		Status:      draft.Status(row.Status),
		CurrentPick: row.CurrentPick,
		PickOrder:   row.PickOrder,
		TotalPicks:  row.TotalPicks,
		Picks:       make([]draft.Pick, 0, len(picks)),
	}
	for _, pr := range picks {
		st.Picks = append(st.Picks, draft.Pick{
			ID:          pr.ID,
			DraftID:     pr.DraftID,
			PickNumber:  pr.PickNumber,
			TeamID:      pr.TeamID,
			NHLPlayerID: pr.NHLPlayerID,
			PlayerName:  pr.PlayerName,
			Position:    pr.Position,
			NHLTeam:     pr.NHLTeam,
			Timestamp:   pr.Timestamp,
		})
	}
	return st, row.Version, nil
}

func (p *PostgresStore) SaveDraft(ctx context.Context, d draft.State, version int64) (int64, error) {
	newVersion := version + 1
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&draftRow{}).
			Where("id = ? AND version = ?", d.ID, version).
			Updates(map[string]any{
				"status":       string(d.Status),
				"current_pick": d.CurrentPick,
				"total_picks":  d.TotalPicks,
				"version":      newVersion,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&draftRow{}).Where("id = ?", d.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrStaleState
		}

		if len(d.Picks) == 0 {
			return nil
		}
		rows := make([]pickRow, 0, len(d.Picks))
		for _, pk := range d.Picks {
			rows = append(rows, pickRow{
				ID:          pk.ID,
				DraftID:     pk.DraftID,
				PickNumber:  pk.PickNumber,
				TeamID:      pk.TeamID,
				NHLPlayerID: pk.NHLPlayerID,
				PlayerName:  pk.PlayerName,
				Position:    pk.Position,
				NHLTeam:     pk.NHLTeam,
				Timestamp:   pk.Timestamp,
			})
		}
		// Picks are immutable once made; re-saving existing ones is a no-op.
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (p *PostgresStore) DeleteDraft(ctx context.Context, id string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&pickRow{}, "draft_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&draftRow{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func toDraftRow(d draft.State) draftRow {
	return draftRow{
		ID:          d.ID,
		LeagueID:    d.LeagueID,
		Status:      string(d.Status),
		CurrentPick: d.CurrentPick,
		PickOrder:   d.PickOrder,
		TotalPicks:  d.TotalPicks,
	}
}
