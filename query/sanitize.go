package query

import "strings"

// query_string 保留字符
const (
	removedChars       = `+|()[]{}?"<>\`
	escapedChars       = `!-^~/&:*`
	minimalEscapeChars = `!-^~/:`
)

// Sanitize 删除无法安全转义的保留字符，并转义其余保留字符
func Sanitize(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case strings.ContainsRune(removedChars, r):
			continue
		case strings.ContainsRune(escapedChars, r):
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MinimalSanitize 只转义会改变查询结构的字符，保留其余输入
func MinimalSanitize(text string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(minimalEscapeChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
