package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanbuzz/explorer/internal/pkg/config"
)

var migrations = []string{
	"migrations/001_explorations",
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("urbanbuzz-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		apply(ctx, pool, migrations, ".sql")
		log.Println("all migrations applied")
	case "down":
		down := slices.Clone(migrations)
		slices.Reverse(down)
		apply(ctx, pool, down, ".down.sql")
		log.Println("all migrations rolled back")
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func apply(ctx context.Context, pool *pgxpool.Pool, names []string, suffix string) {
	for _, name := range names {
		f := name + suffix
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}
}
