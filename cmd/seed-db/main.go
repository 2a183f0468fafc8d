// Command seed-db applies migrations and loads demo data: restaurants, the
// voucher catalog, a session token and a funded wallet.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/auth"
	"github.com/christianyoga13/vego/internal/domain/restaurant"
	"github.com/christianyoga13/vego/internal/domain/voucher"
	"github.com/christianyoga13/vego/internal/domain/wallet"
	"github.com/christianyoga13/vego/internal/repository"
)

var restaurants = []restaurant.Restaurant{
	{
		ID:        "warung-hijau",
		Name:      "Warung Hijau",
		Latitude:  -6.2088,
		Longitude: 106.8456,
		Menu: []restaurant.MenuItem{
			{Name: "Gado Gado", Price: decimal.NewFromInt(20000)},
			{Name: "Tempe Mendoan", Price: decimal.NewFromInt(12000)},
			{Name: "Es Teh Manis", Price: decimal.NewFromInt(5000)},
		},
	},
	{
		ID:        "sate-pak-min",
		Name:      "Sate Pak Min",
		Latitude:  -6.1754,
		Longitude: 106.8272,
		Menu: []restaurant.MenuItem{
			{Name: "Sate Ayam", Price: decimal.NewFromInt(25000)},
			{Name: "Lontong", Price: decimal.NewFromInt(6000)},
		},
	},
}

var catalog = []voucher.CatalogVoucher{
	{Code: "DISCOUNT10", DiscountPercentage: 10, Description: "10% off your order"},
	{Code: "FREESHIP50", DiscountPercentage: 0, Description: "Free shipping promotion"},
	{Code: "CASHBACK20", DiscountPercentage: 20, Description: "20% off your order"},
}

type options struct {
	databaseURL string
	pepper      string
	token       string
	userID      string
	admin       bool
	balance     string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.pepper, "session-pepper", "", "HMAC pepper for session tokens (or VEGO_SESSION_PEPPER env)")
	flag.StringVar(&opts.token, "token", "", "session token to seed (or VEGO_SEED_TOKEN env)")
	flag.StringVar(&opts.userID, "user-id", "demo-user", "user owning the seeded session and wallet")
	flag.BoolVar(&opts.admin, "admin", true, "grant the seeded session admin rights")
	flag.StringVar(&opts.balance, "balance", "100000", "initial wallet balance")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "VEGO_DATABASE_URL", "DATABASE_URL")
	opts.pepper = orEnv(opts.pepper, "VEGO_SESSION_PEPPER")
	opts.token = orEnv(opts.token, "VEGO_SEED_TOKEN")

	switch {
	case opts.databaseURL == "":
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	case opts.token == "":
		slog.Error("session token is required: set --token or VEGO_SEED_TOKEN")
		os.Exit(1)
	case opts.pepper == "":
		slog.Error("session pepper is required: set --session-pepper or VEGO_SESSION_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func orEnv(v string, keys ...string) string {
	for _, k := range keys {
		if v != "" {
			return v
		}
		v = os.Getenv(k)
	}
	return v
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := repository.RunMigrations(pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedRestaurants(ctx, repository.NewRestaurantRepository(pool)); err != nil {
		return errors.Wrap(err, "seed restaurants")
	}
	if err := seedVouchers(ctx, repository.NewVoucherRepository(pool)); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	if err := seedSession(ctx, pool, opts); err != nil {
		return errors.Wrap(err, "seed session")
	}
	if err := seedWallet(ctx, repository.NewWalletRepository(pool), opts); err != nil {
		return errors.Wrap(err, "seed wallet")
	}
	return nil
}

func seedRestaurants(ctx context.Context, repo *repository.RestaurantRepository) error {
	now := time.Now().UTC()
	for _, r := range restaurants {
		if _, err := repo.GetByID(ctx, r.ID); err == nil {
			slog.Info("restaurant exists", slog.String("id", r.ID))
			continue
		} else if !errors.Is(err, restaurant.ErrNotFound) {
			return err
		}

		r.OwnerID = "seed"
		r.CreatedAt = now
		if err := repo.Create(ctx, &r); err != nil {
			return errors.Wrapf(err, "create %s", r.ID)
		}
		slog.Info("created restaurant",
			slog.String("id", r.ID),
			slog.String("name", r.Name),
			slog.Int("menu_items", len(r.Menu)),
		)
	}
	return nil
}

func seedVouchers(ctx context.Context, repo *repository.VoucherRepository) error {
	for _, v := range catalog {
		if err := repo.UpsertCatalog(ctx, v); err != nil {
			return err
		}
		slog.Info("upserted voucher", slog.String("code", v.Code), slog.Int("discount", v.DiscountPercentage))
	}
	return nil
}

func seedSession(ctx context.Context, pool *pgxpool.Pool, opts options) error {
	s := auth.Session{ID: uuid.NewString(), UserID: opts.userID, Admin: opts.admin}
	hash := auth.HashToken([]byte(opts.pepper), opts.token)
	if err := repository.NewSessionRepository(pool).Create(ctx, s, hash); err != nil {
		return err
	}
	slog.Info("seeded session", slog.String("user_id", s.UserID), slog.Bool("admin", s.Admin))
	return nil
}

// seedWallet funds the wallet once; reruns leave a non-zero balance alone.
func seedWallet(ctx context.Context, repo *repository.WalletRepository, opts options) error {
	amount, err := decimal.NewFromString(opts.balance)
	if err != nil {
		return errors.Wrap(err, "parse balance")
	}
	current, err := repo.Balance(ctx, opts.userID)
	if err != nil {
		return err
	}
	if !current.IsZero() || !amount.IsPositive() {
		slog.Info("wallet already funded", slog.String("balance", current.StringFixed(2)))
		return nil
	}

	balance, err := repo.TopUp(ctx, wallet.Transaction{
		ID:        uuid.NewString(),
		UserID:    opts.userID,
		Title:     wallet.TitleTopUp,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	slog.Info("funded wallet", slog.String("user_id", opts.userID), slog.String("balance", balance.StringFixed(2)))
	return nil
}
