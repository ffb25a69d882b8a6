package config

import (
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags holds the toggles for the optional read paths. They are read
// from the environment once at startup.
// Every flag degrades to a store-backed path when disabled, so turning one off
// never changes what the API returns, only where it is read from.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string
	IsAdmin bool
}

// Predefined feature flag names.
const (
	FeatureLeaderboardRealtime = "leaderboard.realtime" // Serve global boards from the Redis sorted sets
	FeatureLeaderboardCache    = "leaderboard.cache"    // Cache rendered leaderboard pages
	FeatureCommunityAverage    = "analytics.community_average"
	FeatureEventFanout         = "events.redis_fanout" // Mirror domain events to other instances
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureLeaderboardRealtime] = &Feature{
		Name:           FeatureLeaderboardRealtime,
		Description:    "Read global leaderboards from the realtime board",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardCache] = &Feature{
		Name:           FeatureLeaderboardCache,
		Description:    "Cache leaderboard pages in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCommunityAverage] = &Feature{
		Name:           FeatureCommunityAverage,
		Description:    "Compute the community average from stored standings",
		Enabled:        false, // full scan; the fixed fallback is used instead
		RolloutPercent: 0,
	}

	ff.features[FeatureEventFanout] = &Feature{
		Name:           FeatureEventFanout,
		Description:    "Publish domain events on Redis for other API instances",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_LEADERBOARD_REALTIME=false
// Example: FEATURE_ANALYTICS_COMMUNITY_AVERAGE=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "leaderboard.realtime" -> "FEATURE_LEADERBOARD_REALTIME"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context. A nil
// context asks about the process as a whole: only a full rollout counts.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if ctx == nil || ctx.UserID == "" {
		return false
	}
	return isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
}

// isInRollout uses consistent hashing so users stay in their bucket.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

// GetAllFeatures returns copies of all features sorted by name. The
// features command prints them.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
