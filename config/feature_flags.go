package config

import (
	"hash/fnv"
	"sort"
	"sync"
)

// FeatureFlags manages feature toggles with percentage rollout.
// Participants are assigned to a rollout bucket by a hash of their ID,
// so a participant stays in the same bucket across requests and instances.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// participant ID -> feature -> enabled
	overrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is 0-100.
	RolloutPercent int
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	ParticipantID string
	IsAdmin       bool
}

// Feature names. They carry no dots so they can be set as PC_FEATURES_<NAME>.
const (
	// FeatureDiscovery gates the candidate discovery read API.
	FeatureDiscovery = "discovery"

	// FeatureMatchNotifications gates delivery of match notifications.
	FeatureMatchNotifications = "match_notifications"

	// FeatureScheduledReconcile gates the periodic reconciliation job.
	FeatureScheduledReconcile = "scheduled_reconcile"
)

// LoadFeatureFlags builds the flag set from defaults plus rollout overrides
// taken from the features config section. Unknown names are ignored.
func LoadFeatureFlags(rollouts map[string]int) *FeatureFlags {
	ff := &FeatureFlags{
		features:  make(map[string]*Feature),
		overrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()

	for name, pct := range rollouts {
		_ = ff.SetRolloutPercent(name, pct)
	}
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []*Feature{
		{
			Name:           FeatureDiscovery,
			Description:    "Candidate discovery ranked by match percentage",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureMatchNotifications,
			Description:    "Notify both participants when a match is made",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureScheduledReconcile,
			Description:    "Periodic repair of connections from live interest edges",
			Enabled:        true,
			RolloutPercent: 100,
		},
	}
	for _, f := range defaults {
		ff.features[f.Name] = f
	}
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context or an empty participant ID evaluates the global switch only.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.ParticipantID != "" {
		if byFeature, ok := ff.overrides[ctx.ParticipantID]; ok {
			if enabled, ok := byFeature[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.ParticipantID != "" {
		return isInRollout(ctx.ParticipantID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout maps participant+feature onto a stable 0-99 bucket.
func isInRollout(participantID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(participantID))
	return int(h.Sum32()%100) < percent
}

// SetOverride forces a feature on or off for one participant.
func (ff *FeatureFlags) SetOverride(participantID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.overrides[participantID]; !ok {
		ff.overrides[participantID] = make(map[string]bool)
	}
	ff.overrides[participantID][featureName] = enabled
}

// ClearOverrides removes all overrides for a participant.
func (ff *FeatureFlags) ClearOverrides(participantID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.overrides, participantID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns copies of all features sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
