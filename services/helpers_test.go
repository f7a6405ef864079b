package services

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-reservations/database"
	"github.com/yeremiapane/restaurant-reservations/events"
	"github.com/yeremiapane/restaurant-reservations/models"
)

// Tests run at a fixed instant: 18 Oct 2026, 12:00 UTC.
var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 18, hour, minute, 0, 0, time.UTC)
}

func startAt(hour, minute int) TimeSpec {
	return TimeSpec{Start: at(hour, minute).Format(time.RFC3339)}
}

func window(fromHour, toHour int) TimeSpec {
	return TimeSpec{
		Start: at(fromHour, 0).Format(time.RFC3339),
		End:   at(toHour, 0).Format(time.RFC3339),
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// setupTestDB opens a private in-memory database. One connection keeps every
// transaction on the same sqlite database and serialises them.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, ":memory:", 1)
}

// setupFileDB opens a sqlite file with a real connection pool, so concurrent
// transactions race each other instead of queueing on one connection. Writers
// take the database lock at BEGIN and wait on each other through busy_timeout.
func setupFileDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "floor.db") +
		"?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
	return openTestDB(t, dsn, conns)
}

func openTestDB(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.Models()...))
	return db
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.got))
	for _, e := range p.got {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db     *gorm.DB
	engine *AllocationEngine
	pub    *recordingPublisher
	now    *time.Time
}

func newTestEnv(t *testing.T, mutate func(*Policy)) *testEnv {
	t.Helper()
	return newTestEnvOn(t, setupTestDB(t), mutate)
}

func newTestEnvOn(t *testing.T, db *gorm.DB, mutate func(*Policy)) *testEnv {
	t.Helper()
	policy := DefaultPolicy()
	if mutate != nil {
		mutate(&policy)
	}
	now := testNow
	env := &testEnv{db: db, pub: &recordingPublisher{}, now: &now}
	env.engine = NewAllocationEngine(db, policy,
		WithClock(func() time.Time { return *env.now }),
		WithPublisher(env.pub),
		WithLogger(quietLogger()),
	)
	return env
}

func (env *testEnv) setNow(t time.Time) {
	*env.now = t
}

func (env *testEnv) addTables(t *testing.T, capacities ...int) []models.Table {
	t.Helper()
	var out []models.Table
	for i, c := range capacities {
		tbl, err := env.engine.AddTable(context.Background(), i+1, c)
		require.NoError(t, err)
		out = append(out, *tbl)
	}
	return out
}

func (env *testEnv) addUser(t *testing.T, email string) models.User {
	t.Helper()
	u := models.User{Name: email, Email: email, Password: "x", Role: models.RoleCustomer}
	require.NoError(t, env.db.Create(&u).Error)
	return u
}

func (env *testEnv) book(t *testing.T, userID uint, party int, spec TimeSpec, table *uint) *Assignment {
	t.Helper()
	asg, err := env.engine.CreateReservation(context.Background(), ReservationRequest{
		UserID:           userID,
		PartySize:        party,
		Time:             spec,
		PreferredTableID: table,
	})
	require.NoError(t, err)
	return asg
}

func uintPtr(v uint) *uint { return &v }

func intPtr(v int) *int { return &v }
