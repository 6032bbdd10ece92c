package redis_client

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/travigo/subway/pkg/util"
)

var Client *redis.Client

var ErrNotConfigured = errors.New("redis address not configured")

const defaultConnectionPassword = ""
const defaultDatabase = 0

// Connect sets up the shared Client. Redis is optional so an unset SUBWAY_REDIS_ADDRESS
// returns ErrNotConfigured and leaves Client nil.
func Connect() error {
	client, err := NewClient(util.GetEnvironmentVariables())
	if err != nil {
		return err
	}

	Client = client
	return nil
}

func NewClient(env map[string]string) (*redis.Client, error) {
	address := env["SUBWAY_REDIS_ADDRESS"]
	password := defaultConnectionPassword
	database := defaultDatabase

	if address == "" {
		return nil, ErrNotConfigured
	}

	if env["SUBWAY_REDIS_PASSWORD"] != "" {
		password = env["SUBWAY_REDIS_PASSWORD"]
	}

	if env["SUBWAY_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["SUBWAY_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return nil, err
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	})

	statusCmd := client.Ping(context.Background())
	if err := statusCmd.Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
