// ABOUTME: Tests for CLI table formatting helpers
// ABOUTME: Covers rune-safe truncation of multibyte descriptions

package main

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short ascii", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"long ascii", "hello world", 8, "hello..."},
		{"short chinese", "执行数据库查询", 10, "执行数据库查询"},
		{"long chinese", "执行数据库查询并返回结果集", 10, "执行数据库查询..."},
		{"mixed", "read 文件内容 from disk", 12, "read 文件内容..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tt.in, tt.maxLen, got)
			}
		})
	}
}
