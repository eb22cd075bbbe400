package main

import (
	"log/slog"
	"strings"

	"moodify/docstore"
	"moodify/pkg/moodify"
)

type storeMode int

const (
	modeLocal storeMode = iota
	modeJSONBin
	modeGCS
)

func (m storeMode) String() string {
	switch m {
	case modeJSONBin:
		return "jsonbin"
	case modeGCS:
		return "gcs"
	default:
		return "local"
	}
}

type config struct {
	dataDir           string
	port              string
	jsonbinBinID      string
	jsonbinAPIKey     string
	jsonbinBaseURL    string
	bucket            string
	object            string
	googleCredentials string
	userName          string
	userAvatar        string
}

// loadConfig reads configuration through getenv, applying defaults.
func loadConfig(getenv func(string) string) config {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	return config{
		dataDir:           get("MOODIFY_DATA_DIR", "./data"),
		port:              get("PORT", "8080"),
		jsonbinBinID:      get("JSONBIN_BIN_ID", ""),
		jsonbinAPIKey:     get("JSONBIN_API_KEY", ""),
		jsonbinBaseURL:    get("JSONBIN_BASE_URL", docstore.DefaultJSONBinURL),
		bucket:            get("STORAGE_BUCKET", ""),
		object:            get("STORAGE_OBJECT", "moodify.json"),
		googleCredentials: getenv("GOOGLE_CREDENTIALS_JSON"),
		userName:          get("MOODIFY_USER", ""),
		userAvatar:        get("MOODIFY_AVATAR", moodify.Avatars[0]),
	}
}

// mode selects JSONBin when both its values are set, else Cloud Storage
// when a bucket is set, else local-only.
func (c config) mode() storeMode {
	switch {
	case c.jsonbinBinID != "" && c.jsonbinAPIKey != "":
		return modeJSONBin
	case c.bucket != "":
		return modeGCS
	default:
		return modeLocal
	}
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
