package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

const templateColumns = `id, name, description, created_at, updated_at`

func (s *pgStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	out := []model.Template{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+templateColumns+` FROM templates ORDER BY id;`); err != nil {
		log.Error().Err(err).Msg("ListTemplates failed")
		return nil, err
	}
	if err := attachBlocks(ctx, s.db, out); err != nil {
		log.Error().Err(err).Msg("ListTemplates: failed to load blocks")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) GetTemplate(ctx context.Context, id int) (model.Template, error) {
	var t model.Template
	if err := s.db.GetContext(ctx, &t, `SELECT `+templateColumns+` FROM templates WHERE id = $1;`, id); err != nil {
		return model.Template{}, translate(err)
	}
	list := []model.Template{t}
	if err := attachBlocks(ctx, s.db, list); err != nil {
		log.Error().Err(err).Int("template_id", id).Msg("GetTemplate: failed to load blocks")
		return model.Template{}, err
	}
	return list[0], nil
}

// attachBlocks loads the blocks and block contents of ts in position order.
func attachBlocks(ctx context.Context, q sqlx.QueryerContext, ts []model.Template) error {
	if len(ts) == 0 {
		return nil
	}
	ids := make([]int64, len(ts))
	for i, t := range ts {
		ids[i] = int64(t.ID)
	}

	var blocks []model.TemplateBlock
	if err := sqlx.SelectContext(ctx, q, &blocks, `
	SELECT id, template_id, name, start_time, end_time, position
	  FROM template_blocks
	 WHERE template_id = ANY($1)
	 ORDER BY template_id, position, id;`, pq.Int64Array(ids)); err != nil {
		return err
	}

	blockIDs := make([]int64, len(blocks))
	for i, b := range blocks {
		blockIDs[i] = int64(b.ID)
	}
	var items []model.TemplateBlockContent
	if len(blocks) > 0 {
		if err := sqlx.SelectContext(ctx, q, &items, `
		SELECT id, block_id, content_id, duration, position
		  FROM template_block_contents
		 WHERE block_id = ANY($1)
		 ORDER BY block_id, position, id;`, pq.Int64Array(blockIDs)); err != nil {
			return err
		}
	}

	byBlock := make(map[int][]model.TemplateBlockContent)
	for _, it := range items {
		byBlock[it.BlockID] = append(byBlock[it.BlockID], it)
	}
	byTemplate := make(map[int][]model.TemplateBlock)
	for _, b := range blocks {
		b.Contents = byBlock[b.ID]
		if b.Contents == nil {
			b.Contents = []model.TemplateBlockContent{}
		}
		byTemplate[b.TemplateID] = append(byTemplate[b.TemplateID], b)
	}
	for i := range ts {
		ts[i].Blocks = byTemplate[ts[i].ID]
		if ts[i].Blocks == nil {
			ts[i].Blocks = []model.TemplateBlock{}
		}
	}
	return nil
}

func insertBlocks(ctx context.Context, tx *sqlx.Tx, templateID int, blocks []model.TemplateBlock) ([]model.TemplateBlock, error) {
	out := make([]model.TemplateBlock, 0, len(blocks))
	for pos, b := range blocks {
		var saved model.TemplateBlock
		if err := tx.GetContext(ctx, &saved, `
		INSERT INTO template_blocks (template_id, name, start_time, end_time, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, template_id, name, start_time, end_time, position;`,
			templateID, b.Name, b.StartTime, b.EndTime, pos); err != nil {
			return nil, fmt.Errorf("insert block %q: %w", b.Name, err)
		}
		saved.Contents = make([]model.TemplateBlockContent, 0, len(b.Contents))
		for ipos, c := range b.Contents {
			var item model.TemplateBlockContent
			if err := tx.GetContext(ctx, &item, `
			INSERT INTO template_block_contents (block_id, content_id, duration, position)
			VALUES ($1, $2, $3, $4)
			RETURNING id, block_id, content_id, duration, position;`,
				saved.ID, c.ContentID, c.Duration, ipos); err != nil {
				return nil, fmt.Errorf("insert content %d of block %q: %w", c.ContentID, b.Name, err)
			}
			saved.Contents = append(saved.Contents, item)
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *pgStore) CreateTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Template{}, err
	}
	defer tx.Rollback()

	var saved model.Template
	if err := tx.GetContext(ctx, &saved, `
	INSERT INTO templates (name, description, created_at, updated_at)
	VALUES ($1, $2, now(), now())
	RETURNING `+templateColumns+`;`, t.Name, t.Description); err != nil {
		log.Error().Err(err).Msg("CreateTemplate failed")
		return model.Template{}, err
	}
	if saved.Blocks, err = insertBlocks(ctx, tx, saved.ID, t.Blocks); err != nil {
		log.Error().Err(err).Int("template_id", saved.ID).Msg("CreateTemplate: failed to insert blocks")
		return model.Template{}, translate(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Template{}, err
	}
	return saved, nil
}

// ReplaceTemplate overwrites the template row and its whole block list.
func (s *pgStore) ReplaceTemplate(ctx context.Context, id int, t model.Template) (model.Template, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Template{}, err
	}
	defer tx.Rollback()

	var saved model.Template
	if err := tx.GetContext(ctx, &saved, `
	UPDATE templates
	   SET name = $2, description = $3, updated_at = now()
	 WHERE id = $1
	RETURNING `+templateColumns+`;`, id, t.Name, t.Description); err != nil {
		return model.Template{}, translate(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM template_blocks WHERE template_id = $1;`, id); err != nil {
		log.Error().Err(err).Int("template_id", id).Msg("ReplaceTemplate: failed to clear blocks")
		return model.Template{}, err
	}
	if saved.Blocks, err = insertBlocks(ctx, tx, id, t.Blocks); err != nil {
		log.Error().Err(err).Int("template_id", id).Msg("ReplaceTemplate: failed to insert blocks")
		return model.Template{}, translate(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Template{}, err
	}
	return saved, nil
}

func (s *pgStore) DeleteTemplate(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int("template_id", id).Msg("DeleteTemplate failed")
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
