package render

import "github.com/joseph-ayodele/ratecon-tracker/internal/entity"

// Pages owns the raster buffers of one render. Release drops them; it is
// safe to call more than once.
type Pages struct {
	pages []entity.RenderedPage
}

// NewPages wraps already rendered pages.
func NewPages(pages []entity.RenderedPage) *Pages {
	return &Pages{pages: pages}
}

func (p *Pages) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pages)
}

// Pages returns the pages in source order. The slice is nil after Release.
func (p *Pages) Pages() []entity.RenderedPage {
	if p == nil {
		return nil
	}
	return p.pages
}

func (p *Pages) Release() {
	if p == nil {
		return
	}
	for i := range p.pages {
		p.pages[i].Data = nil
	}
	p.pages = nil
}
