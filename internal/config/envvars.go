// ABOUTME: Environment variable expansion in config string fields
// ABOUTME: ${VAR} takes the variable's value; ${VAR:-fallback} uses fallback when VAR is unset or empty

package config

import (
	"os"
	"regexp"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)(?::-([^}]*))?\}`)

// ResolveEnvVars expands ${VAR} patterns in path, name, and address fields.
// Tags and separators are left alone: they are matched byte for byte.
func ResolveEnvVars(s *Settings) {
	s.LogLevel = expandEnv(s.LogLevel)
	s.Store.Path = expandEnv(s.Store.Path)
	for i := range s.Sources {
		src := &s.Sources[i]
		src.Name = expandEnv(src.Name)
		src.Address = expandEnv(src.Address)
		src.Device = expandEnv(src.Device)
	}
}

// expandEnv replaces every ${VAR} or ${VAR:-fallback} in s.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range envVarPattern.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		val := os.Getenv(s[m[2]:m[3]])
		if val == "" && m[4] >= 0 {
			val = s[m[4]:m[5]]
		}
		b.WriteString(val)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
