package config

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var load sync.Once

// Config returns the value of an environment variable, loading .env once.
func Config(key string) string {
	load.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("no .env file found, using environment")
		}
	})
	return os.Getenv(key)
}

// ConfigInt returns an integer config value, or def when unset or invalid.
func ConfigInt(key string, def int) int {
	v, err := strconv.Atoi(Config(key))
	if err != nil {
		return def
	}
	return v
}
