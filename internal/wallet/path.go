package wallet

import (
	"errors"
	"strconv"
	"strings"
)

// HardenedOffset 硬化派生索引偏移量 (2^31)
const HardenedOffset uint32 = 0x80000000

var ErrInvalidPath = errors.New("invalid derivation path")

// ParsePath 解析派生路径字符串，例如 "m/42'/0'/0'/1/0"
// 以 ' 结尾的分段表示硬化索引，会加上 HardenedOffset
// "m" 本身解析为空序列
func ParsePath(path string) ([]uint32, error) {
	if path == "" || (path[0] != 'm' && path[0] != 'M') {
		log.Debugf("ParsePath: path %q must start with m or M", path)
		return nil, ErrInvalidPath
	}
	p := path[1:]
	p = strings.TrimPrefix(p, "'")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return []uint32{}, nil
	}

	parts := strings.Split(p, "/")
	idxs := make([]uint32, len(parts))
	for i, part := range parts {
		idx, err := parseSegment(part)
		if err != nil {
			log.Debugf("ParsePath: invalid child index %q in %q", part, path)
			return nil, err
		}
		idxs[i] = idx
	}
	return idxs, nil
}

func parseSegment(part string) (uint32, error) {
	hardened := strings.HasSuffix(part, "'")
	digits := strings.TrimSuffix(part, "'")
	if digits == "" {
		return 0, ErrInvalidPath
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, ErrInvalidPath
		}
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || n >= uint64(HardenedOffset) {
		return 0, ErrInvalidPath
	}
	idx := uint32(n)
	if hardened {
		idx += HardenedOffset
	}
	return idx, nil
}
