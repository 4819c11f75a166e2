package config

import (
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
)

// LoadDotenvIfPresent reads ./.env for local runs. It never overrides the
// environment and is skipped when KEDAI_ENV is production.
func LoadDotenvIfPresent() {
	if strings.EqualFold(os.Getenv("KEDAI_ENV"), "production") {
		return
	}
	if _, err := os.Stat(".env"); err != nil {
		if !os.IsNotExist(err) {
			glog.Warningf("[config] dotenv stat: %v", err)
		}
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		glog.Warningf("[config] dotenv load: %v", err)
	}
}
