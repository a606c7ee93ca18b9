package domain

import (
	"strings"
	"time"
)

type PoolKey struct {
	Country string
	Type    ContentType
}

func NewPoolKey(country string, t ContentType) PoolKey {
	return PoolKey{Country: NormalizeCountry(country), Type: t}
}

func (k PoolKey) String() string {
	return k.Country + ":" + string(k.Type)
}

// NormalizeCountry renvoie un code ISO 3166-1 alpha-2 en minuscules.
func NormalizeCountry(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func ValidCountry(c string) bool {
	if len(c) != 2 {
		return false
	}
	for _, r := range c {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// PoolSnapshot est une vue en lecture seule d'un pool.
type PoolSnapshot struct {
	Key         PoolKey
	Titles      []Title
	RefreshedAt time.Time
}

func (p PoolSnapshot) Expired(now time.Time, ttl time.Duration) bool {
	if p.RefreshedAt.IsZero() {
		return true
	}
	return now.Sub(p.RefreshedAt) > ttl
}
