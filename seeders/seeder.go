package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedDepartments наполняет конвейеры, их этапы и отделы.
// Повторный запуск ничего не дублирует.
func SeedDepartments(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения конвейеров и отделов...")

	if err := seedPipelines(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения конвейеров (Pipelines): %v", err)
	}
	log.Println("✅ Наполнение конвейеров и отделов завершено!")
}
