package util

import "fmt"

// HumanBytes renders a byte count using multiples of 1024.
func HumanBytes(bytes uint64) string {
	size := float64(bytes)
	for _, prefix := range []string{"", "Ki", "Mi", "Gi"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, prefix)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f Ti", size)
}
