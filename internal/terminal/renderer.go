package terminal

import (
	"github.com/charmbracelet/glamour"
)

// DefaultWidth 未指定宽度时的换行宽度
const DefaultWidth = 80

// Renderer 将执行结果的 markdown 渲染为终端输出
type Renderer struct {
	term  *glamour.TermRenderer
	width int
}

// NewRenderer 创建 Renderer；width <= 0 时使用 DefaultWidth
func NewRenderer(width int) (*Renderer, error) {
	if width <= 0 {
		width = DefaultWidth
	}

	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	return &Renderer{term: term, width: width}, nil
}

// Width 返回换行宽度
func (r *Renderer) Width() int {
	return r.width
}

// Render 渲染 markdown，失败时原样返回
func (r *Renderer) Render(markdown string) (string, error) {
	out, err := r.term.Render(markdown)
	if err != nil {
		return markdown, nil
	}
	return out, nil
}
