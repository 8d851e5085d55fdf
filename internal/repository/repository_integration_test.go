//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"parking-service/internal/config"
	"parking-service/internal/db"
	"parking-service/internal/domain/parking"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("parking"),
		tcpostgres.WithUsername("parking"),
		tcpostgres.WithPassword("parking"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	database, err := db.New(&config.Config{
		Environment: "test",
		DB:          config.DBConfig{DSN: dsn},
	}, zerolog.Nop())
	require.NoError(t, err)
	return database
}

func TestRepositories(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2023, 11, 20, 11, 0, 1, 0, time.UTC)

	sessions := NewSessionRepository(database)
	rates := NewRateRepository(database)
	observations := NewObservationRepository(database)

	t.Run("seeded rates", func(t *testing.T) {
		table, err := rates.AllRates(ctx)
		require.NoError(t, err)

		assert.True(t, decimal.NewFromInt(3).Equal(table["Java"]))
		assert.True(t, decimal.NewFromInt(8).Equal(table["Azure"]))
		assert.True(t, decimal.NewFromInt(10).Equal(table["Jakarta"]))
	})

	t.Run("upsert rate", func(t *testing.T) {
		require.NoError(t, rates.UpsertRate(ctx, "Kotlin", decimal.RequireFromString("4.5")))
		require.NoError(t, rates.UpsertRate(ctx, "Kotlin", decimal.RequireFromString("5")))

		table, err := rates.AllRates(ctx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5).Equal(table["Kotlin"]))
	})

	t.Run("session lifecycle", func(t *testing.T) {
		s := parking.NewSession("PB12X9002", "Java", base)
		require.NoError(t, sessions.Create(ctx, s))

		dup := parking.NewSession("PB12X9002", "Azure", base)
		err := sessions.Create(ctx, dup)
		assert.ErrorIs(t, err, parking.ErrAlreadyRegistered)

		active, err := sessions.FindActiveByPlate(ctx, "PB12X9002")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, s.ID, active.ID)
		assert.True(t, base.Equal(active.RegisteredAt))

		require.NoError(t, active.Close(base.Add(5*time.Minute)))
		require.NoError(t, sessions.CloseActive(ctx, active))

		err = sessions.CloseActive(ctx, active)
		assert.ErrorIs(t, err, parking.ErrRegistrationNotFound)

		active, err = sessions.FindActiveByPlate(ctx, "PB12X9002")
		require.NoError(t, err)
		assert.Nil(t, active)

		again := parking.NewSession("PB12X9002", "Azure", base.Add(time.Hour))
		require.NoError(t, sessions.Create(ctx, again))

		found, err := sessions.FindRegisteredBetween(ctx, base, base.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, parking.StatusDeRegistered, found[0].Status)
		assert.Equal(t, parking.StatusRegistered, found[1].Status)
	})

	t.Run("concurrent create keeps one open session", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- sessions.Create(ctx, parking.NewSession("HP12X1234", "Jakarta", base))
			}()
		}
		wg.Wait()
		close(errs)

		var ok int
		for err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, parking.ErrAlreadyRegistered)
		}
		assert.Equal(t, 1, ok)
	})

	t.Run("observations", func(t *testing.T) {
		batch := []parking.Observation{
			{LicencePlate: "PB12X1234", StreetName: "Java", ObservedAt: base},
			{LicencePlate: "MH12X1234", StreetName: "Azure", ObservedAt: base.Add(time.Minute), Metadata: map[string]interface{}{"device": "patrol-7"}},
		}
		require.NoError(t, observations.SaveAll(ctx, batch))
		assert.NotEqual(t, batch[0].ID, batch[1].ID)

		found, err := observations.FindObservedBetween(ctx, base, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "PB12X1234", found[0].LicencePlate)
		assert.Equal(t, "patrol-7", found[1].Metadata["device"])

		deleted, err := observations.DeleteObservedBefore(ctx, base.Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}
