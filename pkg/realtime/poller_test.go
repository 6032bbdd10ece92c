package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/subway/pkg/realtime/feedcache"
	"google.golang.org/protobuf/proto"
)

type staticSource struct {
	body  []byte
	err   error
	calls atomic.Int32
}

func (s *staticSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	return s.body, s.err
}

func feedBody(t *testing.T, entities int) []byte {
	feed := &gtfsrt.FeedMessage{Header: &gtfsrt.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")}}
	for i := 0; i < entities; i++ {
		feed.Entity = append(feed.Entity, &gtfsrt.FeedEntity{Id: proto.String(string(rune('a' + i)))})
	}

	body, err := proto.Marshal(feed)
	require.NoError(t, err)
	return body
}

func TestPoll(t *testing.T) {
	feeds := feedcache.New([]string{"ACE", "G"}, map[string]feedcache.Source{
		"ACE": &staticSource{body: feedBody(t, 3)},
		"G":   &staticSource{err: errors.New("unreachable")},
	})

	results := (&Poller{Feeds: feeds}).Poll(context.Background())
	require.Len(t, results, 2)

	byPartition := map[string]PollResult{}
	for _, result := range results {
		byPartition[result.Partition] = result
	}

	assert.NoError(t, byPartition["ACE"].Err)
	assert.Equal(t, 3, byPartition["ACE"].Entities)
	assert.ErrorIs(t, byPartition["G"].Err, feedcache.ErrUnavailable)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	source := &staticSource{body: feedBody(t, 1)}
	feeds := feedcache.New([]string{"L"}, map[string]feedcache.Source{"L": source}, feedcache.WithTTL(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		(&Poller{Feeds: feeds, Interval: 5 * time.Millisecond}).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return source.calls.Load() >= 2 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestHealthHandler(t *testing.T) {
	recorder := httptest.NewRecorder()
	NewHealthHandler(nil).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	recorder = httptest.NewRecorder()
	NewHealthHandler(client).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "OK", recorder.Body.String())

	server.Close()
	recorder = httptest.NewRecorder()
	NewHealthHandler(client).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestStatsHandler(t *testing.T) {
	feeds := feedcache.New([]string{"ACE"}, map[string]feedcache.Source{"ACE": &staticSource{body: feedBody(t, 1)}})
	_, err := feeds.GetFeed(context.Background(), "ACE")
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	NewStatsHandler(feeds).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/realtime-stats/overview", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"id":"ACE"`)
	assert.Contains(t, recorder.Body.String(), `"fresh":true`)
}
