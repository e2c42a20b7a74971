package protocol

import (
	"math"
	"strconv"
)

// FormatCoins renders an amount the way the game displays it: two decimals
// with a K, M or B suffix from a thousand up, whole units below that.
func FormatCoins(n float64) string {
	switch {
	case n >= 1e9:
		return strconv.FormatFloat(n/1e9, 'f', 2, 64) + "B"
	case n >= 1e6:
		return strconv.FormatFloat(n/1e6, 'f', 2, 64) + "M"
	case n >= 1e3:
		return strconv.FormatFloat(n/1e3, 'f', 2, 64) + "K"
	}
	return strconv.FormatFloat(math.Floor(n), 'f', 0, 64)
}
