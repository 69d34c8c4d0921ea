// Package transport — body.go
//
// Serialises a Notification's field map into the "k = v" line-oriented
// body, sorted by key for a deterministic wire form (two notifiers
// racing to deliver the same logical event should produce
// byte-identical bodies).
package transport

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
)

// EncodeFields serialises fields as "k = v\n" lines, sorted by key.
func EncodeFields(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, fields[k])
	}
	return []byte(b.String())
}

// DecodeFields parses a "k = v" per-line body back into a map. Malformed
// lines (no " = " separator) are skipped.
func DecodeFields(body []byte) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, " = ", 2)
		if len(parts) != 2 {
			continue
		}
		fields[parts[0]] = parts[1]
	}
	return fields
}
