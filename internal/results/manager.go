// Package results keeps the run history: one record per translated document,
// identified by the MD5 of its source file and stored in results.json.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// TranslationStatus represents the status of a translation
type TranslationStatus string

const (
	// StatusComplete indicates every page was processed
	StatusComplete TranslationStatus = "complete"
	// StatusPartial indicates the output was written but some pages failed
	StatusPartial TranslationStatus = "partial"
	// StatusError indicates no output was written
	StatusError TranslationStatus = "error"
)

// DocumentInfo represents one processed document
type DocumentInfo struct {
	ID             string            `json:"id"` // md5_ + first 16 chars of SourceMD5
	SourceFileName string            `json:"source_file_name"`
	SourcePath     string            `json:"source_path"`
	SourceMD5      string            `json:"source_md5"`
	OutputPath     string            `json:"output_path,omitempty"`
	OverlayPaths   []string          `json:"overlay_paths,omitempty"`
	TargetLang     string            `json:"target_lang"`
	Debug          bool              `json:"debug,omitempty"`
	Pages          int               `json:"pages"`
	PagesFailed    int               `json:"pages_failed"`
	Status         TranslationStatus `json:"status"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	TranslatedAt   time.Time         `json:"translated_at"`
	DurationMillis int64             `json:"duration_millis"`
}

// ResultManager stores the run history in a single JSON file
type ResultManager struct {
	baseDir string
	mu      sync.Mutex
}

// NewResultManager creates a new ResultManager with the specified base directory
// If baseDir is empty, uses default location in user's home directory
func NewResultManager(baseDir string) (*ResultManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".pdf-layout-translator")
	}

	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &ResultManager{baseDir: baseDir}, nil
}

// GetBaseDir returns the base directory for results
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

func (m *ResultManager) historyPath() string {
	return filepath.Join(m.baseDir, "results.json")
}

// DocumentID returns the history key for a source MD5
func DocumentID(md5Hash string) string {
	if len(md5Hash) > 16 {
		md5Hash = md5Hash[:16]
	}
	return "md5_" + md5Hash
}

// Record stores info, replacing an earlier record with the same source and
// target language
func (m *ResultManager) Record(info *DocumentInfo) error {
	if info.SourceMD5 == "" {
		return os.ErrInvalid
	}
	if info.ID == "" {
		info.ID = DocumentID(info.SourceMD5)
	}
	if info.TranslatedAt.IsZero() {
		info.TranslatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.load()
	if err != nil {
		return err
	}
	replaced := false
	for i, d := range docs {
		if d.ID == info.ID && d.TargetLang == info.TargetLang && d.Debug == info.Debug {
			docs[i] = info
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, info)
	}
	return m.save(docs)
}

// ListDocuments returns all recorded documents, newest first
func (m *ResultManager) ListDocuments() ([]*DocumentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].TranslatedAt.After(docs[j].TranslatedAt)
	})
	return docs, nil
}

// FindByMD5 finds the newest record for a source file MD5 hash
func (m *ResultManager) FindByMD5(md5Hash string) (*DocumentInfo, error) {
	docs, err := m.ListDocuments()
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.SourceMD5 == md5Hash {
			return doc, nil
		}
	}

	return nil, nil // Not found, but not an error
}

// FindTranslation finds the newest translation (not a debug run) of a source
// file into targetLang
func (m *ResultManager) FindTranslation(md5Hash, targetLang string) (*DocumentInfo, error) {
	docs, err := m.ListDocuments()
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.SourceMD5 == md5Hash && doc.TargetLang == targetLang && !doc.Debug {
			return doc, nil
		}
	}

	return nil, nil
}

// DeleteDocument removes every record of a document
func (m *ResultManager) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.load()
	if err != nil {
		return err
	}
	kept := docs[:0]
	for _, d := range docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	return m.save(kept)
}

func (m *ResultManager) load() ([]*DocumentInfo, error) {
	data, err := os.ReadFile(m.historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	var docs []*DocumentInfo
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse run history: %w", err)
	}
	return docs, nil
}

func (m *ResultManager) save(docs []*DocumentInfo) error {
	if docs == nil {
		docs = []*DocumentInfo{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.historyPath(), data, 0644)
}

// CalculateFileMD5 calculates the MD5 hash of a file
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// ExistingTranslationInfo contains information about an existing translation
type ExistingTranslationInfo struct {
	Exists      bool          `json:"exists"`
	Document    *DocumentInfo `json:"document,omitempty"`
	IsComplete  bool          `json:"is_complete"`
	CanContinue bool          `json:"can_continue"`
	Message     string        `json:"message"`
}

// CheckExistingTranslation looks the input file up by MD5. A translation is
// complete only while its output file still exists.
func (m *ResultManager) CheckExistingTranslation(input, targetLang string) (*ExistingTranslationInfo, error) {
	info := &ExistingTranslationInfo{}

	md5Hash, err := CalculateFileMD5(input)
	if err != nil {
		return nil, err
	}
	doc, err := m.FindTranslation(md5Hash, targetLang)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		info.Message = "未找到已有翻译"
		return info, nil
	}

	info.Exists = true
	info.Document = doc

	switch doc.Status {
	case StatusComplete:
		if _, err := os.Stat(doc.OutputPath); err != nil {
			info.CanContinue = true
			info.Message = fmt.Sprintf("译文 %s 已不存在，需要重新翻译", doc.OutputPath)
			break
		}
		info.IsComplete = true
		info.Message = fmt.Sprintf("该文档已于 %s 翻译完成", doc.TranslatedAt.Format("2006-01-02 15:04"))
	case StatusPartial:
		info.CanContinue = true
		info.Message = fmt.Sprintf("该文档有 %d/%d 页处理失败，可以重新翻译", doc.PagesFailed, doc.Pages)
	default:
		info.CanContinue = true
		info.Message = fmt.Sprintf("该文档翻译失败: %s，可以继续尝试", doc.ErrorMessage)
	}

	return info, nil
}
