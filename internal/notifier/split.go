package notifier

import (
	"strings"
	"unicode/utf16"
)

// textLimit is in UTF-16 code units, the unit Telegram measures message length in.
const textLimit = 4000

// splitText splits long messages into chunks Telegram accepts, preferring
// newline boundaries in the last two thirds of each window. Chunks never end
// inside a rune.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	// pre[i] is the UTF-16 length of rs[:i].
	pre := make([]int, len(rs)+1)
	for i, r := range rs {
		pre[i+1] = pre[i] + utf16Len(r)
	}
	if pre[len(rs)] <= limit {
		return []string{s}
	}

	out := make([]string, 0, pre[len(rs)]/limit+1)
	start := 0
	for start < len(rs) {
		end := start + 1
		for end < len(rs) && pre[end+1]-pre[start] <= limit {
			end++
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && pre[i]-pre[start] >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
