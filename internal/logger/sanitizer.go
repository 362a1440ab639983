package logger

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Sanitizer 負責過濾日誌中的敏感資訊
//
// 限制說明：
//   - 檔案路徑是本工具的主要輸出，不做遮罩
//   - SanitizeArgs() 僅對「敏感 key 的 value」進行遮罩
type Sanitizer struct {
	mu       sync.RWMutex
	patterns []SanitizeRule
}

// SanitizeRule 單一過濾規則
type SanitizeRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"token", "secret", "api_key", "apikey",
	"credential", "auth",
}

// NewSanitizer 建立預設 sanitizer
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: []SanitizeRule{
			{regexp.MustCompile(`(?i)(password|passwd|pwd)=\S+`), "$1=***"},
			{regexp.MustCompile(`(?i)token=\S+`), "token=***"},
			{regexp.MustCompile(`(?i)bearer\s+\S+`), "bearer ***"},
			{regexp.MustCompile(`(?i)api[_-]?key=\S+`), "api_key=***"},
		},
	}
}

// Sanitize applies every rule to input
func (s *Sanitizer) Sanitize(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.patterns {
		input = rule.Pattern.ReplaceAllString(input, rule.Replacement)
	}
	return input
}

// SanitizeArgs masks the values of sensitive keys in slog-style key/value args
func (s *Sanitizer) SanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	result := make([]any, len(args))
	copy(result, args)

	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok || !isSensitiveKey(key) {
			continue
		}
		switch v := result[i+1].(type) {
		case string:
			result[i+1] = maskValue(v)
		case error:
			result[i+1] = maskValue(v.Error())
		}
	}

	return result
}

// AddRule 新增自訂過濾規則
func (s *Sanitizer) AddRule(pattern string, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, SanitizeRule{Pattern: re, Replacement: replacement})
	return nil
}

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sk := range sensitiveKeys {
		if strings.Contains(lowerKey, sk) {
			return true
		}
	}
	return false
}

// maskValue 遮蔽值（保留前後各1字元）
func maskValue(value string) string {
	switch {
	case len(value) <= 2:
		return "***"
	case len(value) <= 8:
		return value[:1] + "***"
	default:
		return value[:1] + "***" + value[len(value)-1:]
	}
}
