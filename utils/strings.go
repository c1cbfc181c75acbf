package utils

import "strings"

func StringJoin(items []string, delim string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString(delim)
		}
		b.WriteString(item)
	}
	return b.String()
}
