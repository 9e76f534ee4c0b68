package loaders

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/v2/document"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
)

// DocxLoader 实现了用于读取 Word (.docx) 文件的 Loader 接口。
type DocxLoader struct{}

// NewDocxLoader 创建一个新的 DocxLoader。
func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

// Load 读取一个 .docx 文件，提取所有段落文本，返回单个 Document。
func (l *DocxLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			textBuilder.WriteString(r.Text())
		}
		textBuilder.WriteString("\n")
	}

	result := &schema.Document{
		Text: textBuilder.String(),
		Metadata: map[string]interface{}{
			"file_name": filepath.Base(path),
		},
	}

	return []*schema.Document{result}, nil
}

// 编译时检查，确保 DocxLoader 实现了 Loader 接口
var _ interfaces.Loader = (*DocxLoader)(nil)
