package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"repair-crm/pkg/config"
	"repair-crm/pkg/database/postgresql"
	"repair-crm/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runDepartments := flag.Bool("departments", false, "Запустить наполнение конвейеров, этапов и отделов")
	runMigrations := flag.Bool("migrate", false, "Перед наполнением применить миграции")
	runAll := flag.Bool("all", false, "Применить миграции и запустить все сидеры")

	flag.Parse()

	if !*runDepartments && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -departments")
		log.Println("  go run ./seeders/cmd/seed -all")
		log.Println("======================================================")
		return
	}

	cfg := config.New()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, zap.NewNop())
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к БД: %v", err)
	}
	defer dbPool.Close()

	if *runAll || *runMigrations {
		if err := postgresql.Migrate(ctx, dbPool, zap.NewNop()); err != nil {
			log.Fatalf("❌ Ошибка применения миграций: %v", err)
		}
		log.Println("======================================================")
	}

	seeders.SeedDepartments(dbPool)

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
