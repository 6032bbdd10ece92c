package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)
		if len(pair) != 2 {
			continue
		}

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// EnvDuration reads a Go duration string (eg. "30s") from the environment map, falling back when unset
func EnvDuration(env map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	value := env[key]
	if value == "" {
		return fallback, nil
	}

	return time.ParseDuration(value)
}

func EnvInt(env map[string]string, key string, fallback int) (int, error) {
	value := env[key]
	if value == "" {
		return fallback, nil
	}

	return strconv.Atoi(value)
}
