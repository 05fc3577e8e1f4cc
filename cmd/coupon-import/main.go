// Command coupon-import loads partner-issued coupon codes from gzip files.
//
// Every file holds one code per line. All imported codes share the discount
// rule given on the command line. A code issued in more than one file is
// ambiguous and is skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/rental-ledger/internal/domain/coupon"
	"github.com/xenking/rental-ledger/internal/repository"
)

const (
	bloomFPR      = 0.001
	maxFiles      = 64
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 32
	batchSize     = 1000
)

type options struct {
	databaseURL   string
	capacity      uint
	discountType  string
	value         string
	maxDiscount   string
	minOrderValue string
	description   string
	validUntil    string
	usageLimit    int
	perUserLimit  int
}

// coupons is the write side of the import.
type coupons interface {
	Upsert(ctx context.Context, rules []coupon.Rule) (int, error)
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.capacity, "capacity", 10_000_000, "expected codes per file, sizes the bloom filters")
	flag.StringVar(&opts.discountType, "type", string(coupon.DiscountPercentage), "discount type: percentage or fixed")
	flag.StringVar(&opts.value, "value", "10", "discount value")
	flag.StringVar(&opts.maxDiscount, "max-discount", "0", "discount cap, 0 means none")
	flag.StringVar(&opts.minOrderValue, "min-order-value", "0", "minimum order subtotal")
	flag.StringVar(&opts.description, "description", "Partner promo code", "coupon description")
	flag.StringVar(&opts.validUntil, "valid-until", "", "expiry date (YYYY-MM-DD), empty means none")
	flag.IntVar(&opts.usageLimit, "usage-limit", 1, "redemptions per code, 0 means unlimited")
	flag.IntVar(&opts.perUserLimit, "per-user-limit", 1, "redemptions per customer, 0 means unlimited")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: coupon-import [flags] codes1.gz [codes2.gz ...]")
		os.Exit(2)
	}
	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, opts options, files []string) error {
	template, err := ruleTemplate(opts)
	if err != nil {
		return err
	}
	if len(files) > maxFiles {
		return errors.Errorf("at most %d files are supported", maxFiles)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, opts.capacity)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find codes issued in 2+ files.
	slog.Info("pass 2: finding duplicate codes")

	duplicates, err := findDuplicates(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find duplicate codes")
	}

	slog.Info("duplicate codes found", slog.Int("count", len(duplicates)))

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// Pass 3: Write every code not in the duplicate set.
	written, err := writeCoupons(ctx, repository.New(pool).Coupons(), files, duplicates, template)
	if err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	slog.Info("coupons written", slog.Int("count", written), slog.Int("skipped", len(duplicates)))
	return nil
}

func ruleTemplate(opts options) (coupon.Rule, error) {
	rule := coupon.Rule{
		DiscountType: coupon.DiscountType(opts.discountType),
		Description:  opts.description,
		UsageLimit:   opts.usageLimit,
		PerUserLimit: opts.perUserLimit,
		Active:       true,
	}
	switch rule.DiscountType {
	case coupon.DiscountPercentage, coupon.DiscountFixed:
	default:
		return coupon.Rule{}, errors.Errorf("unknown discount type %q", opts.discountType)
	}

	var err error
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"value", opts.value, &rule.Value},
		{"max discount", opts.maxDiscount, &rule.MaxDiscount},
		{"min order value", opts.minOrderValue, &rule.MinOrderValue},
	} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return coupon.Rule{}, errors.Wrapf(err, "parse %s", f.name)
		}
		if f.dst.IsNegative() {
			return coupon.Rule{}, errors.Errorf("%s must not be negative", f.name)
		}
	}
	if rule.DiscountType == coupon.DiscountPercentage && rule.Value.GreaterThan(decimal.NewFromInt(100)) {
		return coupon.Rule{}, errors.New("percentage value must be at most 100")
	}

	if opts.validUntil != "" {
		day, err := time.Parse(time.DateOnly, opts.validUntil)
		if err != nil {
			return coupon.Rule{}, errors.Wrap(err, "parse valid-until")
		}
		// Valid through the whole day.
		until := day.Add(24*time.Hour - time.Nanosecond).UTC()
		rule.ValidUntil = &until
	}
	return rule, nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count uint64

			if err := streamGzFile(ctx, f, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findDuplicates re-streams each file and checks codes against the OTHER
// files' bloom filters. Bloom hits are only candidates: a code is a duplicate
// when the candidates of at least two files contain it.
func findDuplicates(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	results := make([]map[string]uint64, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			candidates := make(map[string]uint64)
			fileBit := uint64(1) << uint(i)

			if err := streamGzFile(ctx, f, func(code string) {
				for j, other := range filters {
					if j != i && other.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan file %d for duplicates", i+1)
			}

			slog.Info("pass 2 complete", slog.Int("file", i+1), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint64)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}

	duplicates := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount64(mask) >= 2 {
			duplicates[code] = struct{}{}
		}
	}
	return duplicates, nil
}

// writeCoupons streams the files again and upserts unique codes in batches.
// Files are written one after another so batches stay bounded.
func writeCoupons(
	ctx context.Context,
	repo coupons,
	files []string,
	duplicates map[string]struct{},
	template coupon.Rule,
) (int, error) {
	var (
		batch   = make([]coupon.Rule, 0, batchSize)
		written int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := repo.Upsert(ctx, batch)
		if err != nil {
			return err
		}
		written += n
		batch = batch[:0]
		slog.Info("write progress", slog.Int("written", written))
		return nil
	}

	for i, f := range files {
		var flushErr error
		err := streamGzFile(ctx, f, func(code string) {
			if flushErr != nil {
				return
			}
			if _, dup := duplicates[code]; dup {
				return
			}
			rule := template
			rule.Code = code
			batch = append(batch, rule)
			if len(batch) == batchSize {
				flushErr = flush()
			}
		})
		if err == nil {
			err = flushErr
		}
		if err != nil {
			return written, errors.Wrapf(err, "write file %d", i+1)
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each well-formed
// code, normalized.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := coupon.Normalize(scanner.Text())
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		fn(code)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
