package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/Michael-Zapivahin/sensive-blog/internal/config"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/migrations"
	"github.com/Michael-Zapivahin/sensive-blog/internal/log"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const usage = `Usage: migrate [-dsn DSN] COMMAND

Commands:
  up             apply every pending migration
  up-to VERSION  apply migrations up to VERSION
  down           roll back the latest migration
  reset          roll back every migration
  status         print the migration status
  version        print the current version`

func main() {
	dsn := flag.String("dsn", "", "postgres DSN, defaults to BLOG_POSTGRES_DSN")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := log.Must(cfg.Env)
	defer logger.Sync()

	if *dsn == "" {
		*dsn = cfg.Database.PostgresDSN
	}
	if *dsn == "" {
		logger.Fatalw("No postgres DSN, pass -dsn or set BLOG_POSTGRES_DSN")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		logger.Fatalw("Failed to open database", "error", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalw("Failed to set dialect", "error", err)
	}

	command := args[0]
	switch command {
	case "up":
		err = goose.Up(db, ".")
	case "up-to":
		if len(args) < 2 {
			logger.Fatalw("up-to needs a version")
		}
		version, perr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil {
			logger.Fatalw("Invalid version", "version", args[1], "error", perr)
		}
		err = goose.UpTo(db, ".", version)
	case "down":
		err = goose.Down(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalw("Migration failed", "command", command, "error", err)
	}
	logger.Infow("Migration finished", "command", command)
}
