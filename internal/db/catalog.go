package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

func (s *pgStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	out := []model.Location{}
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name FROM locations ORDER BY id;`); err != nil {
		log.Error().Err(err).Msg("ListLocations failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) ListMonitors(ctx context.Context) ([]model.Monitor, error) {
	out := []model.Monitor{}
	const q = `
	SELECT id, name, status, group_id, location_id, created_at
	  FROM monitors
	 ORDER BY id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("ListMonitors failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) ListGroups(ctx context.Context) ([]model.MonitorGroup, error) {
	out := []model.MonitorGroup{}
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name FROM monitor_groups ORDER BY id;`); err != nil {
		log.Error().Err(err).Msg("ListGroups failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) ListContents(ctx context.Context) ([]model.Content, error) {
	out := []model.Content{}
	const q = `
	SELECT id, title, type, path, duration, description, created_at, updated_at
	  FROM contents
	 ORDER BY id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("ListContents failed")
		return nil, err
	}
	return out, nil
}
