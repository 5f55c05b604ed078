//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/storage/postgres"
)

const (
	pgUser     = "storefront"
	pgPassword = "storefront"
	pgDatabase = "storefront_test"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		Cmd: []string{"postgres", "-c", "fsync=off", "-c", "synchronous_commit=off"},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
				pgUser, pgPassword, host, port.Port(), pgDatabase)
		}).WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		termCtx, termCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer termCancel()
		_ = container.Terminate(termCtx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgUser, pgPassword, host, port.Port(), pgDatabase)

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "connect pool")
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool), "run migrations")
	return pool
}

func insertCoupon(t *testing.T, repo *postgres.CouponRepository, c *coupon.Coupon) {
	t.Helper()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	require.NoError(t, repo.Create(context.Background(), c))
}

// Two concurrent redemptions race for the last slot of a usage_limit=1
// coupon. Exactly one must win; the loser gets ErrUsageLimitReached and
// leaves no usage row behind.
func TestRedeemConcurrentUsageLimit(t *testing.T) {
	pool := startPostgres(t)
	repo := postgres.NewCouponRepository(pool)
	ctx := context.Background()

	c := &coupon.Coupon{
		Code:          "LASTONE",
		DiscountType:  coupon.DiscountFixed,
		DiscountValue: decimal.RequireFromString("5"),
		UsageLimit:    1,
		Active:        true,
	}
	insertCoupon(t, repo, c)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = repo.Redeem(ctx, c.ID, uuid.New(), fmt.Sprintf("user-%d", i), money.MustParse("5.00"))
		}()
	}
	close(start)
	wg.Wait()

	var wins, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, coupon.ErrUsageLimitReached):
			limited++
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one redemption should win")
	assert.Equal(t, racers-1, limited)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)

	var usageRows int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM coupon_usages WHERE coupon_id = $1", c.ID).Scan(&usageRows))
	assert.Equal(t, 1, usageRows, "losing transactions must not leave usage rows")
}

func TestRedeemUnlimitedAndUsageLog(t *testing.T) {
	pool := startPostgres(t)
	repo := postgres.NewCouponRepository(pool)
	ctx := context.Background()

	c := &coupon.Coupon{
		Code:          "EVERGREEN",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.RequireFromString("10"),
		Active:        true,
	}
	insertCoupon(t, repo, c)

	for i := range 3 {
		err := repo.Redeem(ctx, c.ID, uuid.New(), "alice", money.MustParse(fmt.Sprintf("%d.50", i+1)))
		require.NoError(t, err)
	}
	err := repo.Redeem(ctx, c.ID, uuid.New(), "", money.MustParse("9.99"))
	require.NoError(t, err, "guest redemption")

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.UsageCount)

	n, err := repo.CountUsagesForUser(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	usages, err := repo.ListUsages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, usages, 4)
}

func TestFindByCodeCaseInsensitive(t *testing.T) {
	pool := startPostgres(t)
	repo := postgres.NewCouponRepository(pool)
	ctx := context.Background()

	c := &coupon.Coupon{
		Code:          "Save20",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.RequireFromString("20"),
		Active:        true,
	}
	insertCoupon(t, repo, c)

	for _, input := range []string{"save20", "SAVE20", "  Save20  "} {
		got, err := repo.FindByCode(ctx, input)
		require.NoError(t, err, "lookup %q", input)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, "SAVE20", got.Code)
	}

	_, err := repo.FindByCode(ctx, "NOSUCH")
	assert.ErrorIs(t, err, coupon.ErrNotFound)
}
