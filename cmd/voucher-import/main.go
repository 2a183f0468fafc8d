// Command voucher-import loads catalog vouchers from CSV files into the
// database. Files ending in .gz are decompressed on the fly. When a code
// appears in several files the last file on the command line wins.
//
// Each record is CODE,PERCENT[,DESCRIPTION[,VALID_UNTIL]] with VALID_UNTIL in
// RFC 3339. Lines starting with # are ignored.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/christianyoga13/vego/internal/repository"
)

func main() {
	var (
		databaseURL string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "files processed concurrently")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: voucher-import [flags] FILE...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, workers); err != nil {
		slog.Error("voucher import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("voucher import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, workers int) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := &importer{
		catalog: repository.NewVoucherRepository(pool),
		workers: workers,
	}
	stats, err := imp.Import(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int("written", stats.Written),
		slog.Int("shadowed", stats.Shadowed),
		slog.Int("invalid", stats.Invalid),
	)
	return nil
}
