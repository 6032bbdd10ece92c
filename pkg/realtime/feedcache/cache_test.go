package feedcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type fakeSource struct {
	mutex sync.Mutex
	calls int
	body  []byte
	err   error
	gate  chan struct{}
}

func (s *fakeSource) Fetch(ctx context.Context) ([]byte, error) {
	s.mutex.Lock()
	s.calls++
	gate := s.gate
	s.mutex.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.body, s.err
}

func (s *fakeSource) Calls() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls
}

func (s *fakeSource) Fail(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.err = err
}

func feedBody(t *testing.T, entityIDs ...string) []byte {
	feed := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1_700_000_000),
		},
	}
	for _, id := range entityIDs {
		feed.Entity = append(feed.Entity, &gtfsrt.FeedEntity{Id: proto.String(id)})
	}

	body, err := proto.Marshal(feed)
	require.NoError(t, err)

	return body
}

func newTestCache(source Source, clock *fakeClock, options ...Option) *Cache {
	options = append([]Option{WithClock(clock.Now)}, options...)
	return New([]string{"ACE"}, map[string]Source{"ACE": source}, options...)
}

func TestGetFeedFreshness(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{body: feedBody(t, "1", "2")}
	cache := newTestCache(source, clock)

	feed, err := cache.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	assert.Len(t, feed.GetEntity(), 2)
	assert.Equal(t, 1, source.Calls())

	clock.Advance(29 * time.Second)
	_, err = cache.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	assert.Equal(t, 1, source.Calls())

	clock.Advance(1 * time.Second)
	_, err = cache.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	assert.Equal(t, 2, source.Calls())
}

func TestGetFeedUnknownPartition(t *testing.T) {
	source := &fakeSource{body: feedBody(t)}
	cache := newTestCache(source, newFakeClock())

	_, err := cache.GetFeed(context.Background(), "XYZ")
	assert.ErrorIs(t, err, ErrUnknownPartition)
	assert.Equal(t, 0, source.Calls())
}

func TestGetFeedFailureNeverServesStale(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{body: feedBody(t, "1")}
	cache := newTestCache(source, clock)

	_, err := cache.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	fetchedAt := clock.Now()

	clock.Advance(45 * time.Second)
	source.Fail(errors.New("connection refused"))

	feed, err := cache.GetFeed(context.Background(), "ACE")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, feed)

	status := cache.Status()
	require.Len(t, status, 1)
	assert.Equal(t, fetchedAt, status[0].FetchedAt)
	assert.False(t, status[0].Fresh)

	source.Fail(nil)
	feed, err = cache.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	assert.Len(t, feed.GetEntity(), 1)
	assert.True(t, cache.Status()[0].Fresh)
}

func TestGetFeedUndecodable(t *testing.T) {
	source := &fakeSource{body: []byte("not a protobuf")}
	cache := newTestCache(source, newFakeClock())

	_, err := cache.GetFeed(context.Background(), "ACE")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetFeedSingleFlight(t *testing.T) {
	source := &fakeSource{body: feedBody(t, "1"), gate: make(chan struct{})}
	cache := newTestCache(source, newFakeClock())

	var wg sync.WaitGroup
	results := make(chan *gtfsrt.FeedMessage, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed, err := cache.GetFeed(context.Background(), "ACE")
			assert.NoError(t, err)
			results <- feed
		}()
	}

	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, time.Millisecond)
	close(source.gate)
	wg.Wait()
	close(results)

	var first *gtfsrt.FeedMessage
	for feed := range results {
		if first == nil {
			first = feed
		}
		assert.Same(t, first, feed)
	}
	assert.Equal(t, 1, source.Calls())
}

func TestGetFeedCallerCancellation(t *testing.T) {
	source := &fakeSource{body: feedBody(t, "1"), gate: make(chan struct{})}
	cache := newTestCache(source, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		_, err := cache.GetFeed(ctx, "ACE")
		done <- err
	}()

	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned refresh still completes and fills the cache
	close(source.gate)
	require.Eventually(t, func() bool { return cache.Status()[0].Fresh }, time.Second, time.Millisecond)

	_, err = cache.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	assert.Equal(t, 1, source.Calls())
}

func TestGetFeedTimeout(t *testing.T) {
	source := &fakeSource{body: feedBody(t), gate: make(chan struct{})}
	cache := newTestCache(source, newFakeClock(), WithTimeout(20*time.Millisecond))

	_, err := cache.GetFeed(context.Background(), "ACE")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetFeedSharedTier(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	clock := newFakeClock()
	firstSource := &fakeSource{body: feedBody(t, "1", "2", "3")}
	secondSource := &fakeSource{body: feedBody(t)}

	first := newTestCache(firstSource, clock, WithRedis(client))
	second := newTestCache(secondSource, clock, WithRedis(client))

	_, err := first.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)

	feed, err := second.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	assert.Len(t, feed.GetEntity(), 3)
	assert.Equal(t, 0, secondSource.Calls())
	assert.Equal(t, clock.Now(), second.Status()[0].FetchedAt)

	// Once the shared copy is too old the replica goes upstream itself
	clock.Advance(30 * time.Second)
	feed, err = second.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)
	assert.Empty(t, feed.GetEntity())
	assert.Equal(t, 1, secondSource.Calls())
}

func TestPartitionOrder(t *testing.T) {
	cache := New([]string{"B", "A"}, map[string]Source{"A": &fakeSource{}, "B": &fakeSource{}})

	assert.Equal(t, []string{"B", "A"}, cache.Partitions())
	assert.Equal(t, "B", cache.Status()[0].ID)
	assert.True(t, cache.Status()[0].FetchedAt.IsZero())
}
