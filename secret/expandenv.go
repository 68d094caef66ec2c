package secret

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// ExpandEnvStrict expands environment variables in s.
//
//   - ${VAR} must be set; every unset one is named in an ErrMissingEnv error.
//   - $VAR expands to the empty string when unset, as in a shell.
//   - $$ is a literal $.
func ExpandEnvStrict(s string) (string, error) {
	return expand(s, os.LookupEnv)
}

func expand(s string, lookup func(string) (string, bool)) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}
	var (
		b       strings.Builder
		missing []string
	)
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch next := s[i+1]; {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			name := ""
			if end >= 0 {
				name = s[i+2 : i+2+end]
			}
			if !validName(name) {
				b.WriteByte('$')
				continue
			}
			v, ok := lookup(name)
			if !ok && !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			b.WriteString(v)
			i += 2 + end
		default:
			n := nameLen(s[i+1:])
			if n == 0 {
				b.WriteByte('$')
				continue
			}
			v, _ := lookup(s[i+1 : i+1+n])
			b.WriteString(v)
			i += n
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return b.String(), nil
}

// nameLen returns the length of the variable name at the start of s.
func nameLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return i
		}
	}
	return len(s)
}

func validName(name string) bool {
	return name != "" && nameLen(name) == len(name)
}
