package api

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// downloadTTL 填充结果下载链接有效期
const downloadTTL = 10 * time.Minute

type filledDownload struct {
	filePath  string
	fileName  string
	expiresAt time.Time
}

// downloadStore 下载令牌表；令牌过期时一并删除对应的导出文件
type downloadStore struct {
	mu    sync.Mutex
	items map[string]filledDownload
	now    func() time.Time
	remove func(path string) error
}

func newDownloadStore() *downloadStore {
	return &downloadStore{
		items:  make(map[string]filledDownload),
		now:    time.Now,
		remove: os.Remove,
	}
}

func (s *downloadStore) put(filePath, fileName string, ttl time.Duration) (token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeExpiredLocked(now)

	token = newRandomToken(24)
	s.items[token] = filledDownload{
		filePath:  filePath,
		fileName:  fileName,
		expiresAt: now.Add(ttl),
	}
	return token
}

func (s *downloadStore) get(token string) (filledDownload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeExpiredLocked(now)

	v, ok := s.items[token]
	if !ok {
		return filledDownload{}, false
	}
	return v, true
}

func (s *downloadStore) purgeExpiredLocked(now time.Time) {
	for k, v := range s.items {
		if now.After(v.expiresAt) {
			delete(s.items, k)
			// 删除失败的文件留给下次启动时的 sweepStaleExports
			_ = s.remove(v.filePath)
		}
	}
}

// sweepStaleExports 删除导出目录中超过有效期的文件
// 令牌只保存在内存中，进程重启后这些文件已无法下载
func sweepStaleExports(dir string, olderThan time.Time) (removed int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}

func newRandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
