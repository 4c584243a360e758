package bundler

import "strings"

// Kind identifies which bundler engine drives a session. It is fixed once selected.
type Kind string

const (
	// KindModuleBundler is webpack, driven as an external CLI process.
	KindModuleBundler Kind = "module-bundler"
	// KindNativeES is esbuild, driven in-process.
	KindNativeES Kind = "native-es-bundler"
)

// ParseKind canonicalizes user input, accepting tool names as aliases.
// It returns false for unknown values; an empty input yields ("", true).
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", true
	case string(KindModuleBundler), "webpack":
		return KindModuleBundler, true
	case string(KindNativeES), "esbuild":
		return KindNativeES, true
	default:
		return "", false
	}
}

// Mode selects development or production output. It is threaded through
// BuildConfig rather than read from the environment.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode canonicalizes a mode string; "dev" and "prod" are accepted.
func ParseMode(raw string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDevelopment), "dev":
		return ModeDevelopment, true
	case string(ModeProduction), "prod":
		return ModeProduction, true
	default:
		return "", false
	}
}

// IsProduction reports whether optimizations should be applied.
func (m Mode) IsProduction() bool { return m == ModeProduction }
