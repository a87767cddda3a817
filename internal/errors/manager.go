// Package errors keeps the failure ledger: documents and pages that failed
// during translation, persisted so a later run can retry them.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrorStage 错误阶段枚举
type ErrorStage string

const (
	StageOpen      ErrorStage = "open"      // 打开/解析输入文档
	StagePage      ErrorStage = "page"      // 单页处理失败
	StageSave      ErrorStage = "save"      // 写出 PDF 失败
	StageTranslate ErrorStage = "translate" // 翻译服务不可用
)

// ErrorRecord 错误记录
type ErrorRecord struct {
	ID         string     `json:"id"`    // 输入路径，单页失败时为 路径#页码
	Input      string     `json:"input"` // 原始输入路径
	Page       int        `json:"page,omitempty"`
	Stage      ErrorStage `json:"stage"`
	Code       string     `json:"code,omitempty"` // AppError 错误代码
	ErrorMsg   string     `json:"error_msg"`
	Timestamp  time.Time  `json:"timestamp"`
	CanRetry   bool       `json:"can_retry"`
	RetryCount int        `json:"retry_count"`
	LastRetry  time.Time  `json:"last_retry"`
}

// RecordID returns the ledger key of a document or, for page > 0, of one page
func RecordID(input string, page int) string {
	if page > 0 {
		return fmt.Sprintf("%s#%d", input, page)
	}
	return input
}

// ErrorManager 错误管理器
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	errors  map[string]*ErrorRecord // key: ID
}

// NewErrorManager 创建新的错误管理器
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".pdf-layout-translator")
	}

	// 确保目录存在
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		errors:  make(map[string]*ErrorRecord),
	}

	// 加载现有错误记录
	if err := em.load(); err != nil {
		return nil, err
	}

	return em, nil
}

// RecordError 记录错误。页码为 0 表示整个文档失败
func (em *ErrorManager) RecordError(input string, page int, stage ErrorStage, code, errorMsg string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	id := RecordID(input, page)
	record := &ErrorRecord{
		ID:        id,
		Input:     input,
		Page:      page,
		Stage:     stage,
		Code:      code,
		ErrorMsg:  errorMsg,
		Timestamp: time.Now(),
		CanRetry:  stage != StageOpen,
	}

	// 如果已存在，保留重试次数
	if existing, ok := em.errors[id]; ok {
		record.RetryCount = existing.RetryCount
		record.LastRetry = existing.LastRetry
	}

	em.errors[id] = record

	return em.save()
}

// IncrementRetry 增加重试次数
func (em *ErrorManager) IncrementRetry(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if record, ok := em.errors[id]; ok {
		record.RetryCount++
		record.LastRetry = time.Now()
		return em.save()
	}

	return fmt.Errorf("error record not found: %s", id)
}

// RemoveError 移除错误记录（翻译成功后）
func (em *ErrorManager) RemoveError(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.errors[id]; !ok {
		return nil
	}
	delete(em.errors, id)
	return em.save()
}

// ClearDocument 移除某个文档及其所有页面的错误记录
func (em *ErrorManager) ClearDocument(input string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	removed := false
	for id, record := range em.errors {
		if record.Input == input {
			delete(em.errors, id)
			removed = true
		}
	}
	if !removed {
		return nil
	}
	return em.save()
}

// ListErrors 列出所有错误记录，按 ID 排序
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		// 创建副本以避免并发修改
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	return records
}

// BeginRetry 选出可重试的输入（每个输入的最大重试次数小于 maxRetries），
// 并为其所有记录增加重试次数。maxRetries <= 0 表示不限制
func (em *ErrorManager) BeginRetry(maxRetries int) ([]string, error) {
	byInput := make(map[string][]*ErrorRecord)
	for _, record := range em.ListErrors() {
		byInput[record.Input] = append(byInput[record.Input], record)
	}

	var inputs []string
	for input, records := range byInput {
		retryable := true
		for _, record := range records {
			if !record.CanRetry || (maxRetries > 0 && record.RetryCount >= maxRetries) {
				retryable = false
				break
			}
		}
		if !retryable {
			continue
		}
		for _, record := range records {
			if err := em.IncrementRetry(record.ID); err != nil {
				return nil, err
			}
		}
		inputs = append(inputs, input)
	}
	sort.Strings(inputs)

	return inputs, nil
}

// GetError 获取特定错误记录
func (em *ErrorManager) GetError(id string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[id]
	if !ok {
		return nil, false
	}

	// 返回副本
	recordCopy := *record
	return &recordCopy, true
}

// ClearAll 清除所有错误记录
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.errors = make(map[string]*ErrorRecord)
	return em.save()
}

// load 从文件加载错误记录
func (em *ErrorManager) load() error {
	filePath := filepath.Join(em.baseDir, "errors.json")

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在是正常的
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}

	for _, record := range records {
		em.errors[record.ID] = record
	}

	return nil
}

// save 保存错误记录到文件
func (em *ErrorManager) save() error {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	filePath := filepath.Join(em.baseDir, "errors.json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}

	return nil
}

// ExportRetryInputs 导出可重试的输入路径到文本文件，每行一个，去重
func (em *ErrorManager) ExportRetryInputs(outputPath string) error {
	em.mu.RLock()
	defer em.mu.RUnlock()

	seen := make(map[string]bool)
	var inputs []string
	for _, record := range em.errors {
		if !record.CanRetry || seen[record.Input] {
			continue
		}
		seen[record.Input] = true
		inputs = append(inputs, record.Input)
	}
	sort.Strings(inputs)

	var content string
	if len(inputs) > 0 {
		content = strings.Join(inputs, "\n") + "\n"
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write retry list: %w", err)
	}

	return nil
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageOpen:
		return "打开文档"
	case StagePage:
		return "页面处理"
	case StageSave:
		return "写出PDF"
	case StageTranslate:
		return "翻译"
	default:
		return string(stage)
	}
}
