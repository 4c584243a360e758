package config

import "strings"

// OfflineMode governs staging into the offline-server static folder.
type OfflineMode string

const (
	OfflineAuto   OfflineMode = "auto"   // stage when serverless-offline is a project dependency
	OfflineAlways OfflineMode = "always" // always stage
	OfflineNever  OfflineMode = "never"  // never stage
)

// NormalizeOfflineMode canonicalizes user input returning empty string if unknown.
func NormalizeOfflineMode(raw string) OfflineMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(OfflineAuto):
		return OfflineAuto
	case string(OfflineAlways):
		return OfflineAlways
	case string(OfflineNever):
		return OfflineNever
	default:
		return ""
	}
}
