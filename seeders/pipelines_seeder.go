package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func seedPipelines(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблиц 'pipelines', 'stages', 'departments'...")

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range pipelinesData {
		var pipelineID uint64
		err := tx.QueryRow(ctx,
			`INSERT INTO pipelines (name, kind) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind
			 RETURNING id`,
			p.Name, p.Kind,
		).Scan(&pipelineID)
		if err != nil {
			log.Printf("Ошибка при вставке конвейера '%s': %v", p.Name, err)
			return err
		}

		for position, name := range stagesFor(p.Kind) {
			if _, err := tx.Exec(ctx,
				`INSERT INTO stages (pipeline_id, name, position) VALUES ($1, $2, $3)
				 ON CONFLICT (pipeline_id, name) DO UPDATE SET position = EXCLUDED.position`,
				pipelineID, name, position+1,
			); err != nil {
				log.Printf("Ошибка при вставке этапа '%s' конвейера '%s': %v", name, p.Name, err)
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO departments (name, pipeline_id) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET pipeline_id = EXCLUDED.pipeline_id`,
			p.Name, pipelineID,
		); err != nil {
			log.Printf("Ошибка при вставке отдела '%s': %v", p.Name, err)
			return err
		}
	}

	return tx.Commit(ctx)
}
