package storage

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidID = errors.New("invalid id")

// ParseID 将字符串转换为非零的 uint 主键。
func ParseID(s string) (uint, error) {
	val, err := strconv.ParseUint(s, 10, 32)
	if err != nil || val == 0 {
		return 0, ErrInvalidID
	}
	return uint(val), nil
}

// likeContains builds a LIKE pattern matching s anywhere, escaping wildcards with '\'.
func likeContains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
