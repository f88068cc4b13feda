package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// stubRunner fakes pdftoppm and the HEIC converters by writing a PNG whose
// width encodes the page number.
type stubRunner struct {
	mu      sync.Mutex
	calls   [][]string
	failOn  string // page number that should fail
	noImage bool
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string{name}, args...))
	s.mu.Unlock()

	switch name {
	case "pdftoppm":
		page := args[3]
		if page == s.failOn {
			return nil, []byte("Syntax Error: bad page"), errors.New("exit status 1")
		}
		if s.noImage {
			return nil, nil, nil
		}
		n := len(page) + int(page[0]-'0')
		return nil, nil, writePNG(args[len(args)-1]+".png", n)
	case "magick", "heif-convert":
		return nil, nil, writePNG(args[len(args)-1], 3)
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func writePNG(path string, w int) error {
	img := image.NewRGBA(image.Rect(0, 0, w, 1))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func newTestRenderer(r Runner, pages int) *Renderer {
	rd := NewWithRunner(Config{TmpDir: os.TempDir()}, r, nil)
	rd.countPages = func(string) (int, error) { return pages, nil }
	return rd
}

var fakePDF = []byte("%PDF-1.7\n% test\n")

func TestRender_PDFPagesInOrder(t *testing.T) {
	runner := &stubRunner{}
	rd := newTestRenderer(runner, 3)

	pages, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "rc.pdf", MediaType: "application/pdf", Data: fakePDF})
	require.NoError(t, err)
	require.Equal(t, 3, pages.Len())

	for i, p := range pages.Pages() {
		assert.Equal(t, i+1, p.Index)
		assert.Equal(t, constants.MediaTypePNG, p.MediaType)
		cfg, err := png.DecodeConfig(bytes.NewReader(p.Data))
		require.NoError(t, err)
		assert.Equal(t, 1+i+1, cfg.Width, "page %d out of order", i+1)
	}

	require.Len(t, runner.calls, 3)
	for i, call := range runner.calls {
		assert.Equal(t, []string{"-r", "144"}, call[1:3], "renders at 2x nominal resolution")
		assert.Equal(t, []string{"-f", string(rune('1' + i)), "-l", string(rune('1' + i))}, call[3:7])
	}
}

func TestRender_PDFAllOrNothing(t *testing.T) {
	rd := newTestRenderer(&stubRunner{failOn: "2"}, 3)

	pages, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "rc.pdf", Data: fakePDF})
	assert.Nil(t, pages)
	var rerr *common.DocumentRenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 2, rerr.Page)
	assert.Equal(t, common.KindRender, common.KindOf(err))
}

func TestRender_PDFNoImageProduced(t *testing.T) {
	rd := newTestRenderer(&stubRunner{noImage: true}, 1)
	_, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "rc.pdf", Data: fakePDF})
	var rerr *common.DocumentRenderError
	assert.True(t, errors.As(err, &rerr))
}

func TestRender_PDFTooManyPages(t *testing.T) {
	runner := &stubRunner{}
	rd := newTestRenderer(runner, constants.DefaultMaxPages+1)

	_, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "rc.pdf", Data: fakePDF})
	var rerr *common.DocumentRenderError
	require.True(t, errors.As(err, &rerr))
	assert.Contains(t, rerr.Reason, "limit")
	assert.Empty(t, runner.calls)
}

func TestRender_CorruptPDF(t *testing.T) {
	rd := NewWithRunner(Config{}, &stubRunner{}, nil)
	_, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "rc.pdf", Data: []byte("%PDF-1.4 garbage")})
	var rerr *common.DocumentRenderError
	assert.True(t, errors.As(err, &rerr))
}

func TestRender_Image(t *testing.T) {
	data := pngBytes(t, 10, 20)
	rd := NewWithRunner(Config{}, &stubRunner{}, nil)

	pages, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "scan.png", Data: data})
	require.NoError(t, err)
	require.Equal(t, 1, pages.Len())
	assert.Equal(t, 1, pages.Pages()[0].Index)
	assert.Equal(t, data, pages.Pages()[0].Data)
}

func TestRender_CorruptImage(t *testing.T) {
	rd := NewWithRunner(Config{}, &stubRunner{}, nil)
	_, err := rd.Render(context.Background(), entity.UploadedDocument{MediaType: "image/jpeg", Data: []byte("not a jpeg")})
	assert.Equal(t, common.KindRender, common.KindOf(err))
}

func TestRender_HEIC(t *testing.T) {
	runner := &stubRunner{}
	rd := NewWithRunner(Config{HeicConverter: "magick"}, runner, nil)

	pages, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "IMG_0001.HEIC", Data: []byte("ftypheic")})
	require.NoError(t, err)
	require.Equal(t, 1, pages.Len())
	assert.Equal(t, constants.MediaTypePNG, pages.Pages()[0].MediaType)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "magick", runner.calls[0][0])
}

func TestRender_InputErrors(t *testing.T) {
	rd := NewWithRunner(Config{MaxImageBytes: 8}, &stubRunner{}, nil)

	_, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "a.png"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = rd.Render(context.Background(), entity.UploadedDocument{Filename: "a.png", Data: pngBytes(t, 4, 4)})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = rd.Render(context.Background(), entity.UploadedDocument{Filename: "notes.txt", Data: []byte("hello")})
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}

func TestPagesRelease(t *testing.T) {
	p := &Pages{pages: []entity.RenderedPage{{Index: 1, Data: []byte("x")}}}
	p.Release()
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Pages())
	p.Release()

	var nilPages *Pages
	assert.Equal(t, 0, nilPages.Len())
}

func TestDetectMediaType(t *testing.T) {
	assert.Equal(t, constants.MediaTypePDF, DetectMediaType(entity.UploadedDocument{Data: fakePDF}))
	assert.Equal(t, constants.MediaTypeJPEG, DetectMediaType(entity.UploadedDocument{MediaType: "image/jpg"}))
	assert.Equal(t, constants.MediaTypeHEIC, DetectMediaType(entity.UploadedDocument{Filename: "x.heic", MediaType: "application/octet-stream"}))
}

// hangingRunner blocks like a converter stuck on a pathological file.
type hangingRunner struct{}

func (hangingRunner) Run(ctx context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func TestRender_TimesOutHungConverter(t *testing.T) {
	rd := NewWithRunner(Config{TmpDir: os.TempDir(), Timeout: 50 * time.Millisecond}, hangingRunner{}, nil)
	rd.countPages = func(string) (int, error) { return 2, nil }

	start := time.Now()
	pages, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "rc.pdf", Data: fakePDF})
	assert.Nil(t, pages)
	assert.Less(t, time.Since(start), 5*time.Second)

	var rerr *common.DocumentRenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 1, rerr.Page)
	assert.Equal(t, "render timed out", rerr.Reason)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRender_HEICTimeout(t *testing.T) {
	rd := NewWithRunner(Config{TmpDir: os.TempDir(), Timeout: 50 * time.Millisecond}, hangingRunner{}, nil)

	_, err := rd.Render(context.Background(), entity.UploadedDocument{Filename: "photo.heic", Data: []byte("heic bytes")})
	var rerr *common.DocumentRenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "render timed out", rerr.Reason)
}

func TestRender_CanceledCallerIsNotARenderError(t *testing.T) {
	rd := newTestRenderer(hangingRunner{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rd.Render(ctx, entity.UploadedDocument{Filename: "rc.pdf", Data: fakePDF})
	require.ErrorIs(t, err, context.Canceled)
	var rerr *common.DocumentRenderError
	assert.False(t, errors.As(err, &rerr))
}

func TestExecRunner_KillsOnDeadline(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not on PATH")
	}
	r := execRunner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err = r.Run(ctx, sleep, "5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "sleep interrupted")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunner_OK(t *testing.T) {
	tr, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not on PATH")
	}
	r := execRunner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	_, _, err = r.Run(context.Background(), tr)
	assert.NoError(t, err)
}
