package ledger

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/config"
)

type awardKey struct {
	stimulusID int64
	actorID    int64
}

// fakeStore — in-memory реализация Store для тестов сервиса.
type fakeStore struct {
	users  map[int64]*User
	awards map[awardKey]int64 // → beneficiary_id
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[int64]*User),
		awards: make(map[awardKey]int64),
	}
}

func (f *fakeStore) GetOrCreate(_ context.Context, userID int64) (*User, error) {
	if u, ok := f.users[userID]; ok {
		copied := *u
		return &copied, nil
	}
	f.users[userID] = &User{UserID: userID, LifetimeLevel: 1, GreetingEnabled: true}
	copied := *f.users[userID]
	return &copied, nil
}

func (f *fakeStore) AddKudos(_ context.Context, userID int64, amount int64) error {
	f.users[userID].MonthlyKudos += amount
	return nil
}

func (f *fakeStore) DeductKudosGuarded(_ context.Context, userID int64, amount int64) error {
	if f.users[userID].MonthlyKudos >= amount {
		f.users[userID].MonthlyKudos -= amount
	}
	return nil
}

func (f *fakeStore) SetDailyAwards(_ context.Context, userID int64, count int, date time.Time) error {
	u := f.users[userID]
	u.DailyAwardsGive = count
	d := date
	u.LastAwardDate = &d
	return nil
}

func (f *fakeStore) ResetDailyQuota(_ context.Context, userID int64) error {
	u := f.users[userID]
	u.DailyAwardsGive = 0
	u.LastAwardDate = nil
	return nil
}

func (f *fakeStore) ResetAllDailyQuotas(_ context.Context) error {
	for _, u := range f.users {
		u.DailyAwardsGive = 0
		u.LastAwardDate = nil
	}
	return nil
}

func (f *fakeStore) SetLastMessageDate(_ context.Context, userID int64, date time.Time) error {
	d := date
	f.users[userID].LastMessageDate = &d
	return nil
}

func (f *fakeStore) ToggleGreeting(_ context.Context, userID int64) (bool, error) {
	u := f.users[userID]
	u.GreetingEnabled = !u.GreetingEnabled
	return u.GreetingEnabled, nil
}

func (f *fakeStore) Leaderboard(_ context.Context, limit int) ([]*User, error) {
	var out []*User
	for _, u := range f.users {
		if u.MonthlyKudos > 0 {
			copied := *u
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyKudos != out[j].MonthlyKudos {
			return out[i].MonthlyKudos > out[j].MonthlyKudos
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) RecordAward(_ context.Context, stimulusID, actorID, beneficiaryID int64) (bool, error) {
	key := awardKey{stimulusID, actorID}
	if _, exists := f.awards[key]; exists {
		return false, nil
	}
	f.awards[key] = beneficiaryID
	return true, nil
}

func (f *fakeStore) AwardBeneficiary(_ context.Context, stimulusID, actorID int64) (int64, bool, error) {
	beneficiaryID, ok := f.awards[awardKey{stimulusID, actorID}]
	return beneficiaryID, ok, nil
}

func (f *fakeStore) DeleteAward(_ context.Context, stimulusID, actorID int64) error {
	delete(f.awards, awardKey{stimulusID, actorID})
	return nil
}

func newTestService(store *fakeStore, now time.Time) *Service {
	cfg := &config.Config{KudosDailyLimit: 3, KudosDecay: 1, KudosTopBonus: 3}
	var mu sync.Mutex
	s := NewService(store, cfg, &mu, time.UTC)
	s.now = func() time.Time { return now }
	return s
}

var baseTime = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestAwardGrantsBothSides(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	require.NoError(t, svc.Award(ctx, 100, 200, 555))

	assert.Equal(t, int64(2), store.users[100].MonthlyKudos) // автор
	assert.Equal(t, int64(1), store.users[200].MonthlyKudos) // актор
	assert.Equal(t, 1, store.users[200].DailyAwardsGive)
	assert.Contains(t, store.awards, awardKey{555, 200})
}

func TestAwardDuplicateStimulusIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	require.NoError(t, svc.Award(ctx, 100, 200, 555))
	require.NoError(t, svc.Award(ctx, 100, 200, 555)) // повторная доставка

	assert.Equal(t, int64(2), store.users[100].MonthlyKudos)
	assert.Equal(t, int64(1), store.users[200].MonthlyKudos)
	assert.Equal(t, 1, store.users[200].DailyAwardsGive)
}

func TestAwardSelfRejected(t *testing.T) {
	svc := newTestService(newFakeStore(), baseTime)

	err := svc.Award(context.Background(), 100, 100, 555)
	assert.ErrorIs(t, err, common.ErrSelfAward)
}

func TestAwardQuotaExceeded(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		require.NoError(t, svc.Award(ctx, 100+i, 200, 500+i))
	}

	// Лимит исчерпан: отказ без каких-либо мутаций
	err := svc.Award(ctx, 110, 200, 600)
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.NotContains(t, store.awards, awardKey{600, 200})
	assert.NotContains(t, store.users, int64(110))

	// Новый календарный день — квота свежая
	svc.now = func() time.Time { return baseTime.AddDate(0, 0, 1) }
	require.NoError(t, svc.Award(ctx, 110, 200, 600))
	assert.Equal(t, 1, store.users[200].DailyAwardsGive)
}

func TestRetractRestoresBalances(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	require.NoError(t, svc.Award(ctx, 100, 200, 555))

	retracted, err := svc.Retract(ctx, 555, 200)
	require.NoError(t, err)
	assert.True(t, retracted)

	assert.Equal(t, int64(0), store.users[100].MonthlyKudos)
	assert.Equal(t, int64(0), store.users[200].MonthlyKudos)
	assert.NotContains(t, store.awards, awardKey{555, 200})
	// Потраченная квота не возвращается
	assert.Equal(t, 1, store.users[200].DailyAwardsGive)
}

func TestRetractTwiceIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	require.NoError(t, svc.Award(ctx, 100, 200, 555))

	retracted, err := svc.Retract(ctx, 555, 200)
	require.NoError(t, err)
	require.True(t, retracted)

	retracted, err = svc.Retract(ctx, 555, 200)
	require.NoError(t, err)
	assert.False(t, retracted)
	assert.Equal(t, int64(0), store.users[100].MonthlyKudos)
}

func TestRetractAbsentIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)

	retracted, err := svc.Retract(context.Background(), 999, 200)
	require.NoError(t, err)
	assert.False(t, retracted)
}

func TestRetractFloorGuard(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	require.NoError(t, svc.Award(ctx, 100, 200, 555))
	// Decay между выдачей и отзывом съел баланс автора
	store.users[100].MonthlyKudos = 1

	retracted, err := svc.Retract(ctx, 555, 200)
	require.NoError(t, err)
	require.True(t, retracted)

	// Списание −2 при балансе 1 пропускается целиком, минуса нет
	assert.Equal(t, int64(1), store.users[100].MonthlyKudos)
	assert.Equal(t, int64(0), store.users[200].MonthlyKudos)
}

func TestBonusAwardBypassesQuota(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		require.NoError(t, svc.BonusAward(ctx, 100, 700+i))
	}

	assert.Equal(t, int64(5), store.users[100].MonthlyKudos)
}

func TestBonusAwardDuplicateStimulus(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	require.NoError(t, svc.BonusAward(ctx, 100, 700))
	require.NoError(t, svc.BonusAward(ctx, 100, 700))

	assert.Equal(t, int64(1), store.users[100].MonthlyKudos)
}

func TestTrackActivityNewMember(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)

	// Первый контакт: дата инициализируется, бонуса нет
	greet, err := svc.TrackActivity(context.Background(), 100, 1)
	require.NoError(t, err)
	assert.False(t, greet)
	assert.Equal(t, int64(0), store.users[100].MonthlyKudos)
	require.NotNil(t, store.users[100].LastMessageDate)
}

func TestTrackActivityReturningMember(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	_, err := svc.TrackActivity(ctx, 100, 1)
	require.NoError(t, err)

	// Тот же день — без бонуса
	greet, err := svc.TrackActivity(ctx, 100, 2)
	require.NoError(t, err)
	assert.False(t, greet)
	assert.Equal(t, int64(0), store.users[100].MonthlyKudos)

	// Следующий день — бонус и приветствие
	svc.now = func() time.Time { return baseTime.AddDate(0, 0, 1) }
	greet, err = svc.TrackActivity(ctx, 100, 3)
	require.NoError(t, err)
	assert.True(t, greet)
	assert.Equal(t, int64(1), store.users[100].MonthlyKudos)
}

func TestTrackActivityGreetingDisabled(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	_, err := svc.TrackActivity(ctx, 100, 1)
	require.NoError(t, err)
	store.users[100].GreetingEnabled = false

	// Бонус начисляется, но приветствие подавлено
	svc.now = func() time.Time { return baseTime.AddDate(0, 0, 1) }
	greet, err := svc.TrackActivity(ctx, 100, 2)
	require.NoError(t, err)
	assert.False(t, greet)
	assert.Equal(t, int64(1), store.users[100].MonthlyKudos)
}

func TestDeductGuardedValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), baseTime)

	err := svc.DeductGuarded(context.Background(), 100, 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
	err = svc.DeductGuarded(context.Background(), 100, -5)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestStatusRemainingQuota(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, baseTime)
	ctx := context.Background()

	require.NoError(t, svc.Award(ctx, 100, 200, 555))

	_, remaining, err := svc.Status(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	// Чужая квота не тронута
	_, remaining, err = svc.Status(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}
