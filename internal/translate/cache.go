package translate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pdf-layout-translator/internal/types"
)

// CacheEntry 缓存条目
type CacheEntry struct {
	Hash        string    `json:"hash"`
	TargetLang  string    `json:"target_lang"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile 缓存文件格式
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// Cache 负责缓存翻译结果，键为目标语言加原文
type Cache struct {
	cachePath string
	cache     map[string]CacheEntry // hash -> CacheEntry
	mu        sync.RWMutex
}

// NewCache 创建新的翻译缓存实例
func NewCache(cachePath string) *Cache {
	return &Cache{
		cachePath: cachePath,
		cache:     make(map[string]CacheEntry),
	}
}

// ComputeHash 计算缓存键（使用 SHA256）
func ComputeHash(targetLang, text string) string {
	hash := sha256.Sum256([]byte(targetLang + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

// Get 获取缓存的翻译
func (c *Cache) Get(targetLang, text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[ComputeHash(targetLang, text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set 设置翻译缓存
func (c *Cache) Set(targetLang, text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := ComputeHash(targetLang, text)
	c.cache[hash] = CacheEntry{
		Hash:        hash,
		TargetLang:  targetLang,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Load 从文件加载缓存
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrCache, "failed to read cache file", err)
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return types.NewAppError(types.ErrCache, "failed to parse cache file", err)
	}

	c.cache = make(map[string]CacheEntry, len(cacheFile.Entries))
	for _, entry := range cacheFile.Entries {
		c.cache[entry.Hash] = entry
	}
	return nil
}

// Save 保存缓存到文件
func (c *Cache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachePath == "" {
		return nil
	}

	entries := make([]CacheEntry, 0, len(c.cache))
	for _, entry := range c.cache {
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(CacheFile{Version: "1.0", Entries: entries}, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCache, "failed to marshal cache", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return types.NewAppError(types.ErrCache, "failed to create cache directory", err)
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return types.NewAppError(types.ErrCache, "failed to write cache file", err)
	}
	return nil
}

// Size 返回缓存中的条目数量
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]CacheEntry)
}
