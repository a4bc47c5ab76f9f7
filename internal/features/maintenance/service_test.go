package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/kudos-bot/internal/config"
	"serotonyl.ru/kudos-bot/internal/features/history"
	"serotonyl.ru/kudos-bot/internal/features/ledger"
)

// fakeStore — in-memory реализация LedgerStore, HistoryStore и
// MarkerStore для тестов переходов.
type fakeStore struct {
	users      map[int64]*ledger.User
	archive    map[string]*history.Entry
	markers    map[string]string
	logCleared int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*ledger.User),
		archive: make(map[string]*history.Entry),
		markers: make(map[string]string),
	}
}

func (f *fakeStore) addUser(id int64, kudos int64, level int) {
	f.users[id] = &ledger.User{UserID: id, MonthlyKudos: kudos, LifetimeLevel: level}
}

func (f *fakeStore) DecayBalances(_ context.Context, decay int) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.MonthlyKudos > int64(decay)-1 {
			u.MonthlyKudos -= int64(decay)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) TopUser(_ context.Context) (*ledger.User, error) {
	var top *ledger.User
	for _, u := range f.users {
		if u.MonthlyKudos <= 0 {
			continue
		}
		if top == nil || u.MonthlyKudos > top.MonthlyKudos ||
			(u.MonthlyKudos == top.MonthlyKudos && u.UserID < top.UserID) {
			top = u
		}
	}
	if top == nil {
		return nil, nil
	}
	copied := *top
	return &copied, nil
}

func (f *fakeStore) AddKudos(_ context.Context, userID int64, amount int64) error {
	f.users[userID].MonthlyKudos += amount
	return nil
}

func (f *fakeStore) IncrementLevel(_ context.Context, userID int64) (int, error) {
	f.users[userID].LifetimeLevel++
	return f.users[userID].LifetimeLevel, nil
}

func (f *fakeStore) ResetAllBalances(_ context.Context) error {
	for _, u := range f.users {
		u.MonthlyKudos = 0
	}
	return nil
}

func (f *fakeStore) ClearAwardLog(_ context.Context) error {
	f.logCleared++
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, e *history.Entry) error {
	copied := *e
	f.archive[e.Month] = &copied
	return nil
}

func (f *fakeStore) GetMarker(_ context.Context, key string) (string, error) {
	return f.markers[key], nil
}

func (f *fakeStore) SetMarker(_ context.Context, key, value string) error {
	f.markers[key] = value
	return nil
}

func newTestService(store *fakeStore, now time.Time) *Service {
	cfg := &config.Config{KudosDecay: 2, KudosTopBonus: 3}
	var mu sync.Mutex
	s := NewService(store, store, store, cfg, &mu, time.UTC)
	s.now = func() time.Time { return now }
	return s
}

func TestRunDailyDecayAndBonus(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, 5, 1) // усохнет до 3, получит бонус +3
	store.addUser(2, 2, 1) // усохнет ровно до нуля
	store.addUser(3, 0, 1) // нулевой баланс decay не трогает

	svc := newTestService(store, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	report, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "2026-08-29", report.Date)
	assert.Equal(t, int64(2), report.Decayed)
	require.NotNil(t, report.BonusWinner)
	assert.Equal(t, int64(1), report.BonusWinner.UserID)

	assert.Equal(t, int64(6), store.users[1].MonthlyKudos) // 5-2+3
	assert.Equal(t, int64(0), store.users[2].MonthlyKudos)
	assert.Equal(t, int64(0), store.users[3].MonthlyKudos)
}

func TestRunDailyMarkerGuard(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, 10, 1)

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, now)

	report, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	after := store.users[1].MonthlyKudos

	// Повторный тик того же дня — переход не выполняется
	report, err = svc.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, after, store.users[1].MonthlyKudos)

	// Следующий день — переход выполняется снова
	svc.now = func() time.Time { return now.AddDate(0, 0, 1) }
	report, err = svc.RunDaily(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "2026-08-30", report.Date)
}

func TestRunDailyBonusTieBreak(t *testing.T) {
	store := newFakeStore()
	store.addUser(7, 5, 1)
	store.addUser(3, 5, 1) // тот же баланс, меньший ID — бонус ему

	svc := newTestService(store, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	report, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.BonusWinner)
	assert.Equal(t, int64(3), report.BonusWinner.UserID)
}

func TestRunDailyNoPositiveBalances(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, 0, 1)

	svc := newTestService(store, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	report, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Nil(t, report.BonusWinner)
	assert.Equal(t, int64(0), report.Decayed)
}

func TestRunMonthlyClosesCycle(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, 15, 2)
	store.addUser(2, 7, 1)

	svc := newTestService(store, time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC))

	report, err := svc.RunMonthly(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "2026-08", report.Month)
	require.NotNil(t, report.Winner)
	assert.Equal(t, int64(1), report.Winner.UserID)
	assert.Equal(t, 3, report.NewLevel)

	// Уровень повышен, балансы обнулены, журнал очищен
	assert.Equal(t, 3, store.users[1].LifetimeLevel)
	assert.Equal(t, int64(0), store.users[1].MonthlyKudos)
	assert.Equal(t, int64(0), store.users[2].MonthlyKudos)
	assert.Equal(t, 1, store.logCleared)

	// Итог архивирован под ключом закрытого месяца
	entry := store.archive["2026-08"]
	require.NotNil(t, entry)
	require.NotNil(t, entry.WinnerID)
	assert.Equal(t, int64(1), *entry.WinnerID)
	assert.Equal(t, int64(15), entry.WinnerKudos)
	assert.Equal(t, 3, entry.WinnerLevel)

	assert.Equal(t, "2026-09", store.markers["last_monthly_reset"])
}

func TestRunMonthlyMarkerGuard(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, 5, 1)

	svc := newTestService(store, time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC))

	report, err := svc.RunMonthly(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	store.users[1].MonthlyKudos = 4
	report, err = svc.RunMonthly(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 1, store.users[1].LifetimeLevel)
	assert.Equal(t, int64(4), store.users[1].MonthlyKudos)
}

func TestRunMonthlyWithoutWinner(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, 0, 1)

	svc := newTestService(store, time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC))

	report, err := svc.RunMonthly(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Nil(t, report.Winner)

	// Месяц без победителя всё равно архивируется и очищает журнал
	entry := store.archive["2026-08"]
	require.NotNil(t, entry)
	assert.Nil(t, entry.WinnerID)
	assert.Equal(t, 1, store.users[1].LifetimeLevel)
	assert.Equal(t, 1, store.logCleared)
}
