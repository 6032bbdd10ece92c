package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/realtime/feedcache"
)

func StartHealthServer(listen string, feeds *feedcache.Cache, redisClient *redis.Client) {
	mux := http.NewServeMux()
	mux.Handle("/health", NewHealthHandler(redisClient))
	mux.Handle("/realtime-stats/overview", NewStatsHandler(feeds))

	log.Info().Str("listen", listen).Msg("Health server listening")
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Error().Err(err).Msg("Health server stopped")
	}
}

type StatsHandler struct {
	feeds *feedcache.Cache
}

func NewStatsHandler(feeds *feedcache.Cache) *StatsHandler {
	return &StatsHandler{feeds: feeds}
}

func (handler *StatsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(handler.feeds.Status())
}

type HealthHandler struct {
	redisClient *redis.Client
}

func NewHealthHandler(redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{redisClient: redisClient}
}

func (handler *HealthHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if handler.redisClient != nil {
		if err := handler.redisClient.Ping(context.TODO()).Err(); err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(writer, err)

			return
		}
	}

	writer.WriteHeader(http.StatusOK)
	fmt.Fprint(writer, "OK")
}
