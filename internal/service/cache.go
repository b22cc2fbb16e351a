package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cardnews/internal/model"
)

const cacheSuffix = "_news.json"

// NewsCache 按查询保存新闻批次, 以文件修改时间判断过期
type NewsCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

func NewNewsCache(dir string, ttl time.Duration) *NewsCache {
	return &NewsCache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *NewsCache) path(key string) string {
	return filepath.Join(c.dir, key+cacheSuffix)
}

// Load 只返回未过期且非空的缓存
func (c *NewsCache) Load(key string) ([]model.NewsItem, bool) {
	p := c.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > c.ttl {
		return nil, false
	}

	items, err := readCacheFile(p)
	if err != nil || len(items) == 0 {
		return nil, false
	}
	return items, true
}

// Save 覆盖写入
func (c *NewsCache) Save(key string, items []model.NewsItem) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(items)
	if err != nil {
		return err
	}

	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return os.Rename(tmp, c.path(key))
}

// LoadAll 读取全部缓存文件, 忽略过期时间, 新文件在前
func (c *NewsCache) LoadAll() ([]model.NewsItem, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type cacheFile struct {
		path    string
		modTime time.Time
	}
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), cacheSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, cacheFile{path: filepath.Join(c.dir, e.Name()), modTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	var all []model.NewsItem
	var firstErr error
	for _, f := range files {
		items, err := readCacheFile(f.path)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		all = append(all, items...)
	}
	return all, firstErr
}

func readCacheFile(p string) ([]model.NewsItem, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}

	var items []model.NewsItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", filepath.Base(p), err)
	}
	return items, nil
}
