package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Michael-Zapivahin/sensive-blog/internal/config"
	gdb "github.com/Michael-Zapivahin/sensive-blog/internal/db"
	"github.com/Michael-Zapivahin/sensive-blog/internal/log"
)

func main() {
	users := flag.Int("users", 20, "number of users")
	posts := flag.Int("posts", 50, "number of posts")
	tags := flag.Int("tags", 15, "number of tags")
	comments := flag.Int("comments", 200, "number of comments")
	seed := flag.Int64("seed", 0, "random seed, 0 picks one from the clock")
	sample := flag.Bool("sample", false, "write the small fixed sample blog instead of random data")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := log.Must(cfg.Env)
	defer logger.Sync()

	if cfg.Database.Type == gdb.TypeMemory {
		logger.Warnw("Seeding the in-memory store; the data is gone when this process exits")
	}

	db, err := gdb.NewDatabase(&gdb.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.PostgresDSN,
		MaxConns: cfg.Database.MaxConns,
	}, logger)
	if err != nil {
		logger.Fatalw("Failed to create database", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := gdb.ConnectAndMigrate(ctx, db); err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer db.Disconnect(context.Background())

	start := time.Now()
	if *sample {
		s, err := gdb.SeedSample(ctx, db, time.Now().UTC())
		if err != nil {
			logger.Fatalw("Sample seeding failed", "error", err)
		}
		logger.Infow("Sample blog written",
			"posts", len(s.Posts),
			"tags", len(s.Tags),
			"duration", time.Since(start),
		)
		return
	}

	summary, err := gdb.SeedRandom(ctx, db, gdb.RandomConfig{
		Users:    *users,
		Posts:    *posts,
		Tags:     *tags,
		Comments: *comments,
		Seed:     *seed,
	})
	if err != nil {
		logger.Fatalw("Random seeding failed", "error", err, "created", summary)
	}
	logger.Infow("Random data written",
		"users", summary.Users,
		"posts", summary.Posts,
		"tags", summary.Tags,
		"comments", summary.Comments,
		"duration", time.Since(start),
	)
}
