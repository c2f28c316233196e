package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// WeightProfile keeps the weights in their raw JSON form; scoring decides
// whether they are usable.
type WeightProfile struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	WeightsJSON string    `json:"weights"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Store) WeightProfile(ctx context.Context, name string) (*WeightProfile, error) {
	var (
		p    WeightProfile
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT name, description, weights_json, updated_at FROM weight_profiles WHERE name=?`, name).
		Scan(&p.Name, &desc, &p.WeightsJSON, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("weight profile %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

func (s *Store) UpsertWeightProfile(ctx context.Context, p WeightProfile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO weight_profiles(name, description, weights_json, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET description=excluded.description, weights_json=excluded.weights_json, updated_at=excluded.updated_at`,
		p.Name, p.Description, p.WeightsJSON, p.UpdatedAt)
	return err
}

func (s *Store) ListWeightProfiles(ctx context.Context) ([]WeightProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description, weights_json, updated_at FROM weight_profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WeightProfile
	for rows.Next() {
		var (
			p    WeightProfile
			desc sql.NullString
		)
		if err := rows.Scan(&p.Name, &desc, &p.WeightsJSON, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		out = append(out, p)
	}
	return out, rows.Err()
}
