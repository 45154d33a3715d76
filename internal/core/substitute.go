package core

import (
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Substitute replaces every ${name} in template with params[name].
// Placeholders for unknown names are left as they are.
//
// Names are matched longest first in a single pass, so a name that is a prefix
// of another never consumes part of the longer placeholder, and substituted
// values are never scanned again.
func Substitute(template string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(template, "${") {
		return template
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, "${"+name+"}", params[name])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Placeholders returns the distinct names referenced as ${name} in template,
// in order of first appearance.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Unresolved returns the placeholders in template that params cannot fill.
func Unresolved(template string, params map[string]string) []string {
	var missing []string
	for _, name := range Placeholders(template) {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
