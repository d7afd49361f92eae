package services

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"activity-reward-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// newTestDB opens a private in-memory database. A single connection keeps
// the memory database alive and serializes transactions the way row locks
// do on Postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// testClock is a settable clock safe for concurrent readers.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestActivityService wires the service over db with a fixed clock.
func newTestActivityService(t *testing.T, db *gorm.DB, clock *testClock) *ActivityService {
	t.Helper()
	svc := NewActivityService(db, DefaultRules(), time.UTC)
	svc.Now = clock.Now
	return svc
}

func ms(v float64) *float64 { return &v }

// wednesday noon, a week with Monday 2024-03-11
var testNow = time.Date(2024, time.March, 13, 12, 0, 0, 0, time.UTC)
