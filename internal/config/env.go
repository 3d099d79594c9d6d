package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func Env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func MustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}

// BoolEnv reads an env var as bool. If empty or invalid, returns def.
// strconv.ParseBool accepts: 1,t,T,TRUE,true,True,0,f,F,FALSE,false,False.
func BoolEnv(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// IntEnv reads an env var as a non-negative int. If empty or invalid, returns def.
func IntEnv(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// DurationEnv reads a Go duration string ("90s", "24h").
func DurationEnv(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// CSVEnv splits a comma separated env var, dropping blanks. Empty means def.
func CSVEnv(k string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def
	}
	out := make([]string, 0)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
