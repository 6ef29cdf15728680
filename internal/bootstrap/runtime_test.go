package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"guestbook/internal/config"
	"guestbook/internal/models"
	"guestbook/internal/notifications"
	"guestbook/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	return &config.Config{
		QueueDriver:           driver,
		QueueStream:           "guestbook:comments",
		QueueGroup:            "moderation",
		QueueConsumer:         "test",
		QueueClaimIdleSeconds: 30,
		QueueMaxDeliveries:    3,
		WorkerConcurrency:     2,
		NotifyChannel:         "moderation:review",
		AdminEmail:            "admin@guestbook.test",
		PhotoDir:              t.TempDir(),
		ImageMaxWidth:         200,
		ImageMaxHeight:        150,
		InertAlertThreshold:   5,
	}
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestBuildQueue_Memory(t *testing.T) {
	q, err := BuildQueue(context.Background(), testConfig(t, "memory"), nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &queue.Memory{}, q)
}

func TestBuildQueue_RedisCreatesGroup(t *testing.T) {
	_, rdb := setupRedis(t)
	cfg := testConfig(t, "redis")

	q, err := BuildQueue(context.Background(), cfg, rdb, nil)
	require.NoError(t, err)
	assert.IsType(t, &queue.RedisStream{}, q)

	err = rdb.XGroupCreate(context.Background(), cfg.QueueStream, cfg.QueueGroup, "0").Err()
	assert.ErrorContains(t, err, "BUSYGROUP")

	// a second setup against the existing group is fine
	_, err = BuildQueue(context.Background(), cfg, rdb, nil)
	assert.NoError(t, err)
}

func TestBuildQueue_Errors(t *testing.T) {
	_, err := BuildQueue(context.Background(), testConfig(t, "redis"), nil, nil)
	assert.Error(t, err)
	_, err = BuildQueue(context.Background(), testConfig(t, "kafka"), nil, nil)
	assert.Error(t, err)
}

func TestBuildNotifier(t *testing.T) {
	_, rdb := setupRedis(t)

	assert.IsType(t, &notifications.Notifier{}, BuildNotifier(testConfig(t, "redis"), rdb, nil))
	assert.IsType(t, &notifications.LogNotifier{}, BuildNotifier(testConfig(t, "memory"), rdb, slog.Default()))
	assert.IsType(t, &notifications.LogNotifier{}, BuildNotifier(testConfig(t, "redis"), nil, slog.Default()))
}

func TestBuildConsumer_ProcessesMemoryQueue(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Conference{}, &models.Comment{}))

	cfg := testConfig(t, "memory")
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	q, err := BuildQueue(context.Background(), cfg, nil, log)
	require.NoError(t, err)

	// a message for a missing comment is dropped and acked without reaching the checker
	require.NoError(t, q.Enqueue(context.Background(), models.NewModerationMessage(404, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- BuildConsumer(cfg, db, nil, q, log).Run(ctx) }()

	mem := q.(*queue.Memory)
	assert.Eventually(t, func() bool { return mem.Len() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, mem.Failed())
}
