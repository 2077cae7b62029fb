// Package format renders tool calls and tool results into Mattermost post text.
package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
)

// TruncationSuffix marks text cut by Truncate.
const TruncationSuffix = "…"

// Truncate caps s at maxLen runes, replacing the tail with TruncationSuffix.
// A non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	suffix := []rune(TruncationSuffix)
	if maxLen <= len(suffix) {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-len(suffix)]) + TruncationSuffix
}

// ToolCall renders a "call started" post.
func ToolCall(toolName string, params map[string]any, maxLen int) string {
	header := fmt.Sprintf(":hammer_and_wrench: **%s**", toolName)
	if len(params) == 0 {
		return Truncate(header, maxLen)
	}
	return withBlock(header, "json", renderParams(params), maxLen)
}

// ToolResult renders a "call finished" post.
func ToolResult(res *hooks.ToolResultContext, maxLen int) string {
	if res == nil {
		return ""
	}

	icon, verb := ":white_check_mark:", "completed"
	if res.IsError || strings.EqualFold(res.Status, "error") || strings.EqualFold(res.Status, "failed") {
		icon, verb = ":x:", "failed"
	} else if res.Status != "" && !strings.EqualFold(res.Status, "completed") && !strings.EqualFold(res.Status, "ok") {
		verb = strings.ToLower(res.Status)
	}

	header := fmt.Sprintf("%s **%s** %s", icon, res.ToolName, verb)
	if res.DurationMs > 0 {
		header += " in " + (time.Duration(res.DurationMs) * time.Millisecond).String()
	}

	body := ResultText(res)
	if body == "" {
		return Truncate(header, maxLen)
	}
	return withBlock(header, "", body, maxLen)
}

// ResultText extracts the text of a tool result. Content may be a plain string
// or a list of content blocks; only "text" blocks are kept. When the content
// has no text the aggregated output is used.
func ResultText(res *hooks.ToolResultContext) string {
	if res == nil {
		return ""
	}
	text := strings.TrimSpace(contentText(res.Content))
	if text == "" {
		text = strings.TrimSpace(res.Aggregated)
	}
	return text
}

func contentText(content any) string {
	switch c := content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		parts := make([]string, 0, len(c))
		for _, item := range c {
			if s := blockText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case []map[string]any:
		parts := make([]string, 0, len(c))
		for _, item := range c {
			if s := blockText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprint(c)
		}
		return string(data)
	}
}

func blockText(item any) string {
	switch b := item.(type) {
	case string:
		return b
	case map[string]any:
		if t, _ := b["type"].(string); t != "" && t != "text" {
			return ""
		}
		s, _ := b["text"].(string)
		return s
	}
	return ""
}

func renderParams(params map[string]any) string {
	data, err := json.MarshalIndent(params, "", "  ")
	if err == nil {
		return string(data)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, params[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// withBlock renders header followed by body in a fenced code block, cutting the
// body so the whole post fits in maxLen runes.
func withBlock(header, lang, body string, maxLen int) string {
	open := "\n```" + lang + "\n"
	const closing = "\n```"

	if maxLen <= 0 {
		return header + open + body + closing
	}

	budget := maxLen - utf8.RuneCountInString(header) - utf8.RuneCountInString(open) - utf8.RuneCountInString(closing)
	if budget <= 0 {
		return Truncate(header, maxLen)
	}
	if utf8.RuneCountInString(body) > budget {
		note := fmt.Sprintf("\n%s truncated, %s total", TruncationSuffix, humanize.Bytes(uint64(len(body))))
		if keep := budget - utf8.RuneCountInString(note); keep > 0 {
			body = string([]rune(body)[:keep]) + note
		} else {
			body = Truncate(body, budget)
		}
	}
	return header + open + body + closing
}
