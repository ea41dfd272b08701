// Package pacing computes politeness delays between outbound requests so that
// no single remote host is hammered by consecutive fetches. Delays are drawn
// uniformly from a named profile's bounds; requests against the same host get
// the wider window.
package pacing

import (
	"math/rand"
	"net/url"
	"os"
	"time"
)

// Range bounds a uniform random delay.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Profile is a named pair of delay ranges.
type Profile struct {
	Name          string
	SameHost      Range
	DifferentHost Range
}

const (
	// DefaultProfileName is used whenever a requested profile is unknown.
	DefaultProfileName = "interactive"

	// CronProfileName is the slower profile meant for unattended runs.
	CronProfileName = "cron"

	// EnvProfileOverride, when set, beats whatever profile a caller asks for.
	EnvProfileOverride = "QUOTESYNC_DELAY_PROFILE"
)

var profiles = map[string]Profile{
	DefaultProfileName: {
		Name:          DefaultProfileName,
		SameHost:      Range{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
		DifferentHost: Range{Min: 100 * time.Millisecond, Max: 400 * time.Millisecond},
	},
	CronProfileName: {
		Name:          CronProfileName,
		SameHost:      Range{Min: 2 * time.Second, Max: 6 * time.Second},
		DifferentHost: Range{Min: 250 * time.Millisecond, Max: 1 * time.Second},
	},
}

// ResolveProfile returns the profile for name, falling back to the default
// for empty or unrecognized names. The EnvProfileOverride environment
// variable, when it names a known profile, takes precedence over name.
func ResolveProfile(name string) Profile {
	if override := os.Getenv(EnvProfileOverride); override != "" {
		if p, ok := profiles[override]; ok {
			return p
		}
	}
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles[DefaultProfileName]
}

// Delay returns how long to wait before requesting curHost, given that the
// previous request went to prevHost. The first request in a sequence has no
// prior host and is never paced.
func Delay(prevHost, curHost string, p Profile) time.Duration {
	if prevHost == "" {
		return 0
	}
	if prevHost == curHost {
		return randomIn(p.SameHost)
	}
	return randomIn(p.DifferentHost)
}

// HostOf extracts the host from a URL. Empty or unparsable input yields the
// empty string, so callers treat "no host" and "parse failure" alike as
// "no pacing constraint".
func HostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func randomIn(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int63n(int64(r.Max-r.Min+1)))
}
