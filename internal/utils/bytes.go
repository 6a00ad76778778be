package utils

import (
	"fmt"
	"strconv"
	"strings"
)

var byteUnits = []string{"KB", "MB", "GB", "TB", "PB"}

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), byteUnits[exp])
}

// ParseBytes reads sizes such as "512", "300KB", "5 MB" or "1.5GB" (binary multiples).
func ParseBytes(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	mult := int64(1)
	for i := len(byteUnits) - 1; i >= 0; i-- {
		if strings.HasSuffix(s, byteUnits[i]) {
			s = strings.TrimSuffix(s, byteUnits[i])
			for j := 0; j <= i; j++ {
				mult *= 1024
			}
			break
		}
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "B"))

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int64(n * float64(mult)), nil
}
