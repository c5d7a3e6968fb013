package mapping

import "strings"

// Recognised option keys.
const (
	OptionIndex        = "index"
	OptionKeyProperty  = "keyProperty"
	OptionForceStrings = "forceStrings"
)

// Defaults applied when an option is missing or blank.
const (
	DefaultIndexPrefix = "neo4j-index"
	DefaultKeyProperty = "uuid"
)

// Config is the resolved mapper configuration.
type Config struct {
	// IndexPrefix is the prefix index names are derived from.
	IndexPrefix string

	// KeyProperty is the property used as document ID. It is never copied into documents.
	KeyProperty string

	// ForceStrings converts every property value to its string representation.
	ForceStrings bool
}

// DefaultConfig returns the configuration produced by an empty option map.
func DefaultConfig() Config {
	return Config{
		IndexPrefix:  DefaultIndexPrefix,
		KeyProperty:  DefaultKeyProperty,
		ForceStrings: false,
	}
}

// ParseConfig resolves options into a Config. It never fails: values are trimmed,
// blank values fall back to their defaults, and forceStrings is true only when it
// equals "true" ignoring case. Unrecognised keys are ignored.
func ParseConfig(options map[string]string) Config {
	return Config{
		IndexPrefix:  stringOption(options, OptionIndex, DefaultIndexPrefix),
		KeyProperty:  stringOption(options, OptionKeyProperty, DefaultKeyProperty),
		ForceStrings: strings.EqualFold(strings.TrimSpace(options[OptionForceStrings]), "true"),
	}
}

func stringOption(options map[string]string, key, def string) string {
	v := strings.TrimSpace(options[key])
	if v == "" {
		return def
	}
	return v
}
