package util

import (
	"math"
	"strconv"
)

// ParseID 解析路径中的ID，非正整数视为校验错误
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, NewValidationError("id", "must be a positive integer")
	}
	return uint(id), nil
}

// Round 按小数位四舍五入（远离零方向）
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Percent 返回 part/whole*100，whole 为 0 时返回 0
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
