package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// DBPath is the device-local snapshot database.
	DBPath string
	// BusURL is the relay websocket endpoint joining this replica to
	// its instance-family. Empty means no cross-process bus.
	BusURL string
	// BusListen, when set, makes this process host the relay.
	BusListen string
	// Nickname used when no account flow runs.
	Nickname string
	// Room joined at startup.
	Room string
}

// Load reads .env (best effort) and the environment, applying defaults.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env loaded: %v", err)
	}
	return &Config{
		DBPath:    getenv("NOFEDS_DB", "nofeds.db"),
		BusURL:    os.Getenv("NOFEDS_BUS_URL"),
		BusListen: os.Getenv("NOFEDS_BUS_LISTEN"),
		Nickname:  getenv("NOFEDS_NICKNAME", "guest"),
		Room:      getenv("NOFEDS_ROOM", "general"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
