package outbox

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-core/internal/db"
	"storefront-core/internal/domain"
	"storefront-core/internal/migrate"
)

func TestPostgres_BatchLifecycle(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, migrate.Apply(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE outbox RESTART IDENTITY`)
	require.NoError(t, err)

	repo := NewPostgres(pool)
	for _, key := range []string{"o1", "o2"} {
		require.NoError(t, repo.Insert(ctx, domain.OutboxMessage{
			Topic:     "order-events",
			Key:       key,
			EventType: domain.EventOrderCreated,
			Payload:   []byte(`{"orderId":"` + key + `"}`),
			Headers:   map[string]string{"source": "test"},
		}))
	}

	txm := db.NewTxManager(pool)
	err = txm.RunInTx(ctx, func(ctx context.Context) error {
		msgs, err := repo.GetBatch(ctx, 10)
		if err != nil {
			return err
		}
		require.Len(t, msgs, 2)
		assert.Equal(t, "o1", msgs[0].Key)
		assert.Equal(t, "test", msgs[0].Headers["source"])
		assert.JSONEq(t, `{"orderId":"o1"}`, string(msgs[0].Payload))

		if err := repo.MarkPublished(ctx, msgs[0].ID); err != nil {
			return err
		}
		return repo.UpdateRetryCount(ctx, msgs[1].ID, "broker down")
	})
	require.NoError(t, err)

	msgs, err := repo.GetBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "o2", msgs[0].Key)
	assert.Equal(t, 1, msgs[0].RetryCount)
}
