package types

// SelectionMode identifies one of the four image-selection pipelines.
//
// Historically the pipeline was configured through two independent boolean
// flags ("use prompt over keyword" and "strict similarity gate"), which
// produced four implicit behaviors scattered across flag checks. The modes
// make each combination an explicit variant with its own code path.
type SelectionMode int

const (
	// ModeLegacy searches with the short LLM keyword (or extracted
	// keywords) and uses semantic scoring only to rank candidates; a weak
	// match can still win.
	ModeLegacy SelectionMode = iota

	// ModeLegacyStrict is the keyword-first search with the strict gate:
	// a top candidate scoring below the threshold is rejected and the
	// pipeline falls back to plain keyword search.
	ModeLegacyStrict

	// ModeAdvancedSoft searches with the descriptive LLM prompt and uses
	// semantic scoring as a ranker only.
	ModeAdvancedSoft

	// ModeAdvancedStrict searches with the descriptive LLM prompt and
	// rejects matches below the similarity threshold.
	ModeAdvancedStrict
)

// ModeFromFlags maps the legacy two-flag configuration surface onto a
// SelectionMode variant.
func ModeFromFlags(usePrompt, strictGate bool) SelectionMode {
	switch {
	case usePrompt && strictGate:
		return ModeAdvancedStrict
	case usePrompt:
		return ModeAdvancedSoft
	case strictGate:
		return ModeLegacyStrict
	default:
		return ModeLegacy
	}
}

// UsesPrompt reports whether the mode prefers the LLM image prompt over the
// short search keyword.
func (m SelectionMode) UsesPrompt() bool {
	return m == ModeAdvancedSoft || m == ModeAdvancedStrict
}

// StrictGate reports whether the mode rejects top candidates that score
// below the similarity threshold.
func (m SelectionMode) StrictGate() bool {
	return m == ModeLegacyStrict || m == ModeAdvancedStrict
}

// String returns the mode name used in logs and the stats endpoint.
func (m SelectionMode) String() string {
	switch m {
	case ModeLegacy:
		return "legacy"
	case ModeLegacyStrict:
		return "legacy-strict"
	case ModeAdvancedSoft:
		return "advanced-soft"
	case ModeAdvancedStrict:
		return "advanced-strict"
	default:
		return "unknown"
	}
}
