package server

import (
	"strings"
	"time"

	"backend-scampr/internal/config"
)

const defaultAccessTTL = 30 * time.Minute

func accessTTL(cfg config.Config) time.Duration {
	if cfg.AccessTokenTTLMinutes <= 0 {
		return defaultAccessTTL
	}
	return time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute
}

func corsOrigins(origins string) string {
	parts := strings.Split(origins, ",")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "*"
	}
	return strings.Join(kept, ",")
}
