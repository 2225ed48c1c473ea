package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's
// standard library. Supports both ${VAR} and $VAR syntax.
//
// Examples:
//   - ${TRACEPILOT_DB_PASSWORD} -> value of TRACEPILOT_DB_PASSWORD
//   - $REDIS_URL -> value of REDIS_URL
//
// Missing variables expand to empty string. load merges with
// mergo.WithOverride, which skips empty values, so a field whose variable
// is missing keeps its built-in value.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
