package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// pdfPageCount validates the PDF structure and returns its page count.
func pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(f, conf)
}

func (r *Renderer) dpi() int {
	return int(math.Round(constants.NominalDPI * r.cfg.Scale))
}

// renderPDF rasterises every page, one at a time and in order. Any page
// failure discards the pages already rendered.
func (r *Renderer) renderPDF(ctx context.Context, doc entity.UploadedDocument, dir string) ([]entity.RenderedPage, error) {
	in := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	count, err := r.countPages(in)
	if err != nil {
		return nil, &common.DocumentRenderError{Reason: "unreadable pdf", Err: err}
	}
	if count == 0 {
		return nil, &common.DocumentRenderError{Reason: "pdf has no pages"}
	}
	if count > r.cfg.MaxPages {
		return nil, &common.DocumentRenderError{Reason: fmt.Sprintf("pdf has %d pages; limit is %d", count, r.cfg.MaxPages)}
	}

	dpi := strconv.Itoa(r.dpi())
	pages := make([]entity.RenderedPage, 0, count)
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, renderFailure(i, "", err)
		}
		prefix := filepath.Join(dir, fmt.Sprintf("page-%d", i))
		n := strconv.Itoa(i)
		// pdftoppm -r <dpi> -f <i> -l <i> -png -singlefile <in.pdf> <dir/page-i>
		if _, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, "-r", dpi, "-f", n, "-l", n, "-png", "-singlefile", in, prefix); err != nil {
			return nil, renderFailure(i, truncate(string(errb), 512), err)
		}

		out := prefix + ".png"
		data, err := os.ReadFile(out)
		_ = os.Remove(out)
		if err != nil {
			return nil, &common.DocumentRenderError{Page: i, Reason: "no image produced", Err: err}
		}
		if _, err := decodeConfig(data); err != nil {
			return nil, &common.DocumentRenderError{Page: i, Reason: "invalid page image", Err: err}
		}
		pages = append(pages, entity.RenderedPage{Index: i, MediaType: constants.MediaTypePNG, Data: data})
		r.logger.Debug("render.page.ok", "page", i, "of", count, "bytes", len(data))
	}
	return pages, nil
}
