package utils

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// GenerateULID 生成ULID（毫秒级时间前缀，用于信号ID等场景，严格排序依赖created_at）
func GenerateULID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
