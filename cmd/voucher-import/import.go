package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/christianyoga13/vego/internal/domain/pricing"
	"github.com/christianyoga13/vego/internal/domain/voucher"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type catalogWriter interface {
	UpsertCatalog(ctx context.Context, v voucher.CatalogVoucher) error
}

// Stats summarizes an import run.
type Stats struct {
	// Written counts upserted records.
	Written int
	// Shadowed counts records skipped because a later file defines the same code.
	Shadowed int
	Invalid  int
}

type importer struct {
	catalog catalogWriter
	workers int
}

type codeSet map[string]struct{}

// Import writes the records of files to the catalog.
//
// Pass 1 builds a bloom filter of the codes in every file. Pass 2 checks each
// file against the filters of the other files and keeps only the bloom hits,
// which bounds memory by the overlap rather than by the input size. Pass 3
// writes every record not redefined by a later file. Records kept for
// pass 3 have codes unique across files, so files are written concurrently.
func (im *importer) Import(ctx context.Context, files []string) (Stats, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return Stats{}, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: resolving codes shared between files")
	shadowed, err := im.findShadowed(ctx, files, filters)
	if err != nil {
		return Stats{}, errors.Wrap(err, "find shadowed codes")
	}

	slog.Info("pass 3: writing vouchers")
	return im.write(ctx, files, shadowed)
}

func (im *importer) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	if im.workers > 0 {
		g.SetLimit(im.workers)
	}
	return g, ctx
}

func (im *importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := im.group(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count int
			err := scanFile(ctx, path, func(v voucher.CatalogVoucher) error {
				filter.AddString(v.Code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Int("codes", count))
				}
				return nil
			}, nil)
			if err != nil {
				return err
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findShadowed returns, per file, the codes that a later file redefines.
func (im *importer) findShadowed(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]codeSet, error) {
	var (
		// later[i] holds codes of file i that may occur in a later file.
		later = make([]codeSet, len(files))
		// earlier[i] holds codes of file i that may occur in an earlier file.
		earlier = make([]codeSet, len(files))
	)

	g, ctx := im.group(ctx)
	for i, path := range files {
		g.Go(func() error {
			l, e := codeSet{}, codeSet{}
			err := scanFile(ctx, path, func(v voucher.CatalogVoucher) error {
				for j, f := range filters {
					if j == i || !f.TestString(v.Code) {
						continue
					}
					if j > i {
						l[v.Code] = struct{}{}
					} else {
						e[v.Code] = struct{}{}
					}
				}
				return nil
			}, nil)
			if err != nil {
				return err
			}
			later[i], earlier[i] = l, e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Both sides only contain real codes of their own file, so intersecting
	// them drops bloom false positives.
	shadowed := make([]codeSet, len(files))
	for i := range files {
		shadowed[i] = codeSet{}
		for code := range later[i] {
			for j := i + 1; j < len(files); j++ {
				if _, ok := earlier[j][code]; ok {
					shadowed[i][code] = struct{}{}
					break
				}
			}
		}
	}
	return shadowed, nil
}

func (im *importer) write(ctx context.Context, files []string, shadowed []codeSet) (Stats, error) {
	var written, skipped, invalid atomic.Int64

	g, ctx := im.group(ctx)
	for i, path := range files {
		g.Go(func() error {
			return scanFile(ctx, path, func(v voucher.CatalogVoucher) error {
				if _, ok := shadowed[i][v.Code]; ok {
					skipped.Add(1)
					return nil
				}
				if err := im.catalog.UpsertCatalog(ctx, v); err != nil {
					return errors.Wrapf(err, "upsert %s", v.Code)
				}
				if n := written.Add(1); n%progressEvery == 0 {
					slog.Info("write progress", slog.Int64("written", n))
				}
				return nil
			}, func(line int, err error) {
				invalid.Add(1)
				slog.Warn("skipping invalid record",
					slog.String("file", path),
					slog.Int("line", line),
					slog.String("error", err.Error()),
				)
			})
		})
	}
	err := g.Wait()
	return Stats{
		Written:  int(written.Load()),
		Shadowed: int(skipped.Load()),
		Invalid:  int(invalid.Load()),
	}, err
}

// parseRecord turns CODE,PERCENT[,DESCRIPTION[,VALID_UNTIL]] into a catalog
// voucher. Percentages outside [0, 100] are clamped.
func parseRecord(fields []string) (voucher.CatalogVoucher, error) {
	if len(fields) < 2 || len(fields) > 4 {
		return voucher.CatalogVoucher{}, errors.Errorf("want 2 to 4 fields, got %d", len(fields))
	}
	code := voucher.NormalizeCode(fields[0])
	if code == "" {
		return voucher.CatalogVoucher{}, errors.New("empty code")
	}
	pct, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return voucher.CatalogVoucher{}, errors.Wrap(err, "parse percentage")
	}

	v := voucher.CatalogVoucher{
		Code:               code,
		DiscountPercentage: pricing.ClampPercentage(pct),
	}
	if len(fields) > 2 {
		v.Description = strings.TrimSpace(fields[2])
	}
	if len(fields) > 3 {
		if s := strings.TrimSpace(fields[3]); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return voucher.CatalogVoucher{}, errors.Wrap(err, "parse valid until")
			}
			t = t.UTC()
			v.ValidUntil = &t
		}
	}
	return v, nil
}

// scanFile calls fn for every valid record in path and onInvalid, when set,
// for every record that does not parse. Malformed CSV lines count as invalid
// records.
func scanFile(ctx context.Context, path string, fn func(voucher.CatalogVoucher) error, onInvalid func(line int, err error)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			if onInvalid != nil {
				onInvalid(perr.Line, err)
			}
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		v, err := parseRecord(fields)
		if err != nil {
			if onInvalid != nil {
				line, _ := cr.FieldPos(0)
				onInvalid(line, err)
			}
			continue
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}
