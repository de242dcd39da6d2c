package reporter

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jhaldar/sprout/models"
	"github.com/jhaldar/sprout/queue"
	"github.com/jhaldar/sprout/report"
	"github.com/jhaldar/sprout/storage/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeStore struct {
	profile *models.Profile
	snaps   chan models.Snapshot
}

func (f *fakeStore) FindProfile(ctx context.Context, filter interface{}) (*models.Profile, error) {
	return f.profile, nil
}

func (f *fakeStore) SubscribeDayRecords(ctx context.Context, profileID primitive.ObjectID) (<-chan models.Snapshot, error) {
	return f.snaps, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]interface{}{}}
}

func (f *fakeCache) Connect(url string) error { return nil }
func (f *fakeCache) Disconnect() error        { return nil }

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeCache) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = map[string]interface{}{}
	return nil
}

func (f *fakeCache) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	if !ok {
		return "", false
	}
	return v.(string), true
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []*queue.TierMessage
}

func (f *fakeNotifier) NotifyTier(msg *queue.TierMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

var testAnchor = time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

func testProfile() *models.Profile {
	return &models.Profile{
		ID:           primitive.NewObjectID(),
		Name:         "Haldar",
		WeekStartDay: int(time.Sunday),
		Children:     []models.Child{{ID: "child-1", Name: "Maya"}},
		Behaviors:    []models.Behavior{{ID: "chores", Label: "Chores", Enabled: true}},
	}
}

func testTiers() []report.Tier {
	return []report.Tier{
		{ID: "star", Label: "Star", Minimum: 3, Marker: "*"},
		{ID: "super", Label: "Superstar", Minimum: 10, Marker: "**"},
	}
}

func snapshotWithPoints(profileID primitive.ObjectID, dates []string, value int) models.Snapshot {
	records := make([]models.DayRecord, len(dates))
	for i, date := range dates {
		records[i] = models.DayRecord{
			ProfileID: profileID,
			ChildID:   "child-1",
			Date:      date,
			Points:    map[string]int{"chores": value},
		}
	}
	return models.Snapshot{ID: uuid.New(), ProfileID: profileID, Records: records, At: testAnchor}
}

func startReporter(t *testing.T, store *fakeStore, c *fakeCache, n *fakeNotifier) context.CancelFunc {
	t.Helper()
	r := New(store, c, n, Config{
		Mode:        report.ModeWeek,
		Tiers:       testTiers(),
		NotifyEmail: "parent@example.com",
		Now:         func() time.Time { return testAnchor },
	})
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx, store.profile.ID)
	return cancel
}

func TestReporterCachesRenderedReport(t *testing.T) {
	store := &fakeStore{profile: testProfile(), snaps: make(chan models.Snapshot, 1)}
	c := newFakeCache()
	n := &fakeNotifier{}
	cancel := startReporter(t, store, c, n)
	defer cancel()

	store.snaps <- snapshotWithPoints(store.profile.ID, []string{"2024-03-12"}, 1)

	key := ReportKey(store.profile.ID, "child-1", "2024-03-10 → 2024-03-16")
	require.Eventually(t, func() bool {
		_, ok := c.get(key)
		return ok
	}, time.Second, 10*time.Millisecond)

	rendered, _ := c.get(key)
	assert.Contains(t, rendered, "child,Maya")
	assert.Contains(t, rendered, "total,1")
	assert.Contains(t, rendered, "day,2024-03-12,1")
	assert.Equal(t, 0, n.count(), "one point should not reach any tier")
}

func TestReporterAnnouncesTierOnce(t *testing.T) {
	store := &fakeStore{profile: testProfile(), snaps: make(chan models.Snapshot, 1)}
	c := newFakeCache()
	n := &fakeNotifier{}
	cancel := startReporter(t, store, c, n)
	defer cancel()

	dates := []string{"2024-03-11", "2024-03-12", "2024-03-13"}
	store.snaps <- snapshotWithPoints(store.profile.ID, dates, 1)

	require.Eventually(t, func() bool { return n.count() == 1 }, time.Second, 10*time.Millisecond)
	n.mu.Lock()
	msg := n.msgs[0]
	n.mu.Unlock()
	assert.Equal(t, "Maya", msg.ChildName)
	assert.Equal(t, "Star", msg.TierLabel)
	assert.Equal(t, 3, msg.Total)
	assert.Equal(t, "parent@example.com", msg.To)

	// A later snapshot within the same tier stays quiet.
	dates = append(dates, "2024-03-14")
	store.snaps <- snapshotWithPoints(store.profile.ID, dates, 1)

	key := ReportKey(store.profile.ID, "child-1", "2024-03-10 → 2024-03-16")
	require.Eventually(t, func() bool {
		rendered, ok := c.get(key)
		return ok && strings.Contains(rendered, "total,4")
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, n.count())
}

func TestReporterProcessesNewestSnapshot(t *testing.T) {
	store := &fakeStore{profile: testProfile(), snaps: make(chan models.Snapshot, 2)}
	c := newFakeCache()
	n := &fakeNotifier{}

	// Both snapshots are queued before the reporter starts; only the newer
	// one should be computed.
	store.snaps <- snapshotWithPoints(store.profile.ID, []string{"2024-03-11", "2024-03-12", "2024-03-13"}, 1)
	store.snaps <- snapshotWithPoints(store.profile.ID, nil, 0)

	cancel := startReporter(t, store, c, n)
	defer cancel()

	key := ReportKey(store.profile.ID, "child-1", "2024-03-10 → 2024-03-16")
	require.Eventually(t, func() bool {
		_, ok := c.get(key)
		return ok
	}, time.Second, 10*time.Millisecond)

	rendered, _ := c.get(key)
	assert.Contains(t, rendered, "total,0", "the superseded snapshot must not be computed")
	assert.Equal(t, 0, n.count())
}

func TestReporterStopsOnClosedSubscription(t *testing.T) {
	store := &fakeStore{profile: testProfile(), snaps: make(chan models.Snapshot)}
	c := newFakeCache()
	n := &fakeNotifier{}
	r := New(store, c, n, Config{Now: func() time.Time { return testAnchor }})

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), store.profile.ID)
	}()
	close(store.snaps)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the subscription closed")
	}
}
