package loaders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/v2/presentation"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
)

// PptxLoader 实现了用于读取 PowerPoint (.pptx) 文件的 Loader 接口。
type PptxLoader struct{}

// NewPptxLoader 创建一个新的 PptxLoader。
func NewPptxLoader() *PptxLoader {
	return &PptxLoader{}
}

// Load 读取一个 .pptx 文件，按幻灯片提取占位符中的文本，每页返回一个 Document。
func (l *PptxLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	ppt, err := presentation.Open(path)
	if err != nil {
		return nil, err
	}
	defer ppt.Close()

	var documents []*schema.Document
	for i, slide := range ppt.Slides() {
		var textBuilder strings.Builder
		for _, ph := range slide.PlaceHolders() {
			for _, para := range ph.Paragraphs() {
				for _, run := range para.X().EG_TextRun {
					if run.TextRunChoice != nil && run.TextRunChoice.R != nil {
						textBuilder.WriteString(run.TextRunChoice.R.T)
					}
				}
				textBuilder.WriteString("\n")
			}
		}

		text := textBuilder.String()
		if strings.TrimSpace(text) == "" {
			continue
		}

		documents = append(documents, &schema.Document{
			Text: text,
			Metadata: map[string]interface{}{
				"file_name":  filepath.Base(path),
				"page_label": fmt.Sprintf("%d", i+1),
			},
		})
	}

	return documents, nil
}

// 编译时检查，确保 PptxLoader 实现了 Loader 接口
var _ interfaces.Loader = (*PptxLoader)(nil)
