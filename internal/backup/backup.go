package backup

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"astro/internal/config"
	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
	"astro/pkg/logger"
)

// 归档内的固定路径。
const (
	archiveDB      = "astro.db"
	archiveImages  = "images/"
	archiveDocs    = "documents/"
	archiveVectors = "vectors.jsonl"
)

// sqliteMagic 是 SQLite 数据库文件的头部标识。
var sqliteMagic = []byte("SQLite format 3\x00")

// importBatchSize 控制恢复向量时每批写入的分块数。
const importBatchSize = 200

// Summary 汇总一次恢复写回的内容。
type Summary struct {
	Database  bool `json:"database"`
	Images    int  `json:"images"`
	Documents int  `json:"documents"`
	Vectors   int  `json:"vectors"`
}

// vectorRecord 是 vectors.jsonl 中的一行，携带重建分块所需的全部字段。
// Milvus 不像本地目录那样可以直接打包，所以向量以可移植的
// JSON Lines 形式进出归档。
type vectorRecord struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	ChunkIndex int64     `json:"chunk_index"`
	UniverseID int64     `json:"universe_id"`
	Embedding  []float32 `json:"embedding"`
}

// Manager 负责生成和恢复 ZIP 备份归档。
// 归档包含关系数据库文件、图片、文档和向量导出。
type Manager struct {
	storage config.StorageConfig
	vectors interfaces.VectorStore
	log     *logger.Logger
}

// NewManager 创建一个 Manager。
func NewManager(storage config.StorageConfig, vectors interfaces.VectorStore) *Manager {
	return &Manager{storage: storage, vectors: vectors, log: logger.New("backup")}
}

// Create 把完整备份写入 w。
func (m *Manager) Create(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)

	if err := m.addFile(zw, m.storage.DatabasePath(), archiveDB); err != nil {
		return fmt.Errorf("备份数据库失败: %w", err)
	}
	if err := m.addDir(zw, m.storage.ImagesPath(), archiveImages); err != nil {
		return fmt.Errorf("备份图片失败: %w", err)
	}
	if err := m.addDir(zw, m.storage.DocumentsPath(), archiveDocs); err != nil {
		return fmt.Errorf("备份文档失败: %w", err)
	}
	if err := m.addVectors(ctx, zw); err != nil {
		return fmt.Errorf("备份向量失败: %w", err)
	}

	return zw.Close()
}

// addFile 把单个文件写入归档，文件不存在时跳过。
func (m *Manager) addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}

// addDir 递归地把目录内容写入归档前缀下。
func (m *Manager) addDir(zw *zip.Writer, dir, prefix string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return m.addFile(zw, path, prefix+filepath.ToSlash(rel))
	})
}

// addVectors 导出全部分块为 JSON Lines。
func (m *Manager) addVectors(ctx context.Context, zw *zip.Writer) error {
	docs, err := m.vectors.Export(ctx)
	if err != nil {
		// 向量库不可用时仍然产出其余内容的备份。
		m.log.Warn(fmt.Sprintf("Vector export failed, archive will have no vectors: %v", err))
		return nil
	}

	entry, err := zw.Create(archiveVectors)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(entry)
	for _, doc := range docs {
		rec := vectorRecord{
			ID:        doc.ID,
			Text:      doc.Text,
			Embedding: doc.Embedding,
		}
		rec.Source, _ = doc.Metadata[schema.MetadataKeySource].(string)
		rec.EntityType, _ = doc.Metadata[schema.MetadataKeyEntityType].(string)
		rec.EntityID = metadataInt64(doc.Metadata, schema.MetadataKeyEntityID)
		rec.ChunkIndex = metadataInt64(doc.Metadata, schema.MetadataKeyChunkIndex)
		rec.UniverseID = metadataInt64(doc.Metadata, schema.MetadataKeyUniverseID)
		if err := enc.Encode(&rec); err != nil {
			return err
		}
	}
	return nil
}

// Restore 用归档内容完整替换现有状态。
// 应用任何修改前先校验归档: astro.db 缺失或不可读时整体拒绝。
func (m *Manager) Restore(ctx context.Context, archivePath string) (*Summary, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("无法打开备份归档: %w", err)
	}
	defer zr.Close()

	dbEntry := findEntry(&zr.Reader, archiveDB)
	if dbEntry == nil {
		return nil, fmt.Errorf("backup archive is missing %s", archiveDB)
	}
	if err := validateDatabase(dbEntry); err != nil {
		return nil, err
	}

	// 校验通过后清空图片和文档目录，恢复是整体替换而不是合并，
	// 不在归档里的旧文件不应该留下来。
	for _, dir := range []string{m.storage.ImagesPath(), m.storage.DocumentsPath()} {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("清空目录 '%s' 失败: %w", dir, err)
		}
	}

	summary := &Summary{}

	// 数据库先落地，失败则整体中止，磁盘状态保持不变。
	if err := m.extractEntry(dbEntry, m.storage.DatabasePath()); err != nil {
		return nil, fmt.Errorf("恢复数据库失败: %w", err)
	}
	summary.Database = true

	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, archiveImages) && !f.FileInfo().IsDir():
			rel := strings.TrimPrefix(f.Name, archiveImages)
			dest, err := extractPath(m.storage.ImagesPath(), rel)
			if err != nil {
				return summary, err
			}
			if err := m.extractEntry(f, dest); err != nil {
				return summary, fmt.Errorf("恢复图片 '%s' 失败: %w", rel, err)
			}
			summary.Images++
		case strings.HasPrefix(f.Name, archiveDocs) && !f.FileInfo().IsDir():
			rel := strings.TrimPrefix(f.Name, archiveDocs)
			dest, err := extractPath(m.storage.DocumentsPath(), rel)
			if err != nil {
				return summary, err
			}
			if err := m.extractEntry(f, dest); err != nil {
				return summary, fmt.Errorf("恢复文档 '%s' 失败: %w", rel, err)
			}
			summary.Documents++
		}
	}

	if vectorsEntry := findEntry(&zr.Reader, archiveVectors); vectorsEntry != nil {
		count, err := m.restoreVectors(ctx, vectorsEntry)
		if err != nil {
			return summary, fmt.Errorf("恢复向量失败: %w", err)
		}
		summary.Vectors = count
	}

	m.log.Info(fmt.Sprintf("Restore complete: %d image(s), %d document(s), %d vector(s)",
		summary.Images, summary.Documents, summary.Vectors))
	return summary, nil
}

// validateDatabase 检查归档里的数据库文件头。
func validateDatabase(entry *zip.File) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("backup archive has an unreadable %s: %w", archiveDB, err)
	}
	defer rc.Close()

	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(rc, header); err != nil {
		return fmt.Errorf("backup archive has an unreadable %s: %w", archiveDB, err)
	}
	if !bytes.Equal(header, sqliteMagic) {
		return fmt.Errorf("backup archive's %s is not a SQLite database", archiveDB)
	}
	return nil
}

// extractPath 把归档条目的相对路径解析到目标目录内，拒绝目录穿越。
func extractPath(root, rel string) (string, error) {
	dest := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(dest)+string(filepath.Separator), cleanRoot) {
		return "", fmt.Errorf("backup archive entry '%s' escapes the restore directory", rel)
	}
	return dest, nil
}

// extractEntry 把归档条目写到目标路径，必要时创建父目录。
func (m *Manager) extractEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// restoreVectors 清空向量库后分批重新写入导出的分块。
func (m *Manager) restoreVectors(ctx context.Context, entry *zip.File) (int, error) {
	rc, err := entry.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	if err := m.vectors.Clear(ctx); err != nil {
		return 0, err
	}

	var batch []*schema.Document
	count := 0
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec vectorRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return count, fmt.Errorf("vectors.jsonl 中有无法解析的行: %w", err)
		}
		batch = append(batch, &schema.Document{
			ID:        rec.ID,
			Text:      rec.Text,
			Embedding: rec.Embedding,
			Metadata: map[string]interface{}{
				schema.MetadataKeySource:     rec.Source,
				schema.MetadataKeyEntityType: rec.EntityType,
				schema.MetadataKeyEntityID:   rec.EntityID,
				schema.MetadataKeyChunkIndex: rec.ChunkIndex,
				schema.MetadataKeyUniverseID: rec.UniverseID,
			},
		})
		if len(batch) >= importBatchSize {
			if err := m.vectors.Add(ctx, batch); err != nil {
				return count, err
			}
			count += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return count, err
	}
	if len(batch) > 0 {
		if err := m.vectors.Add(ctx, batch); err != nil {
			return count, err
		}
		count += len(batch)
	}
	return count, nil
}

func findEntry(r *zip.Reader, name string) *zip.File {
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func metadataInt64(md map[string]interface{}, key string) int64 {
	switch v := md[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
