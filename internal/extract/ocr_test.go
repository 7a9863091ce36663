package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-backend/internal/shared/apperr"
)

var (
	fakePDF = []byte("%PDF-1.4\nnot really a pdf\n%%EOF")
	fakePNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	mu        sync.Mutex
	calls     []call
	ocrText   string
	failTool  string
	skipImage bool
	block     bool
	seen      []string // inputs that existed while the tool ran
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{name: name, args: args})
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	if name == s.failTool {
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	switch name {
	case "pdftoppm":
		in, prefix := args[len(args)-2], args[len(args)-1]
		s.record(in)
		if !s.skipImage {
			if err := os.WriteFile(prefix+".jpg", []byte("jpeg"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		s.record(args[0])
		return []byte(s.ocrText), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func (s *stubRunner) record(path string) {
	if _, err := os.Stat(path); err == nil {
		s.mu.Lock()
		s.seen = append(s.seen, path)
		s.mu.Unlock()
	}
}

func (s *stubRunner) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.name)
	}
	return out
}

func newTestOCR(t *testing.T, runner Runner, mut func(*OCRConfig)) (*RasterOCR, string) {
	t.Helper()
	base := t.TempDir()
	cfg := OCRConfig{TempDir: base, Timeout: 2 * time.Second}
	if mut != nil {
		mut(&cfg)
	}
	return NewRasterOCR(cfg, runner, nil), base
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
}

func TestRecognizePDFRasterizesThenRecognizes(t *testing.T) {
	runner := &stubRunner{ocrText: "Full Name: Jane Doe"}
	ocr, base := newTestOCR(t, runner, nil)

	text, err := ocr.Recognize(context.Background(), fakePDF, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Full Name: Jane Doe", text)
	assert.Equal(t, []string{"pdftoppm", "tesseract"}, runner.names())

	pp := runner.calls[0].args
	assert.Equal(t, []string{"-f", "1", "-l", "1", "-r", "200", "-scale-to-x", "1200", "-scale-to-y", "1600", "-jpeg", "-singlefile"}, pp[:12])
	assert.Equal(t, "input.pdf", filepath.Base(pp[12]))
	assert.Equal(t, []string{"stdout", "-l", "eng"}, runner.calls[1].args[1:])
	assert.Equal(t, "page.jpg", filepath.Base(runner.calls[1].args[0]))

	require.Len(t, runner.seen, 2)
	assertEmptyDir(t, base)
}

func TestRecognizeImageSkipsRasterization(t *testing.T) {
	runner := &stubRunner{ocrText: "text"}
	ocr, base := newTestOCR(t, runner, func(c *OCRConfig) { c.TesseractLang = "fra" })

	_, err := ocr.Recognize(context.Background(), fakePNG, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tesseract"}, runner.names())
	assert.Equal(t, ".png", filepath.Ext(runner.calls[0].args[0]))
	assert.Equal(t, "fra", runner.calls[0].args[3])
	assertEmptyDir(t, base)
}

func TestRecognizeToolFailureCleansUp(t *testing.T) {
	for _, tool := range []string{"pdftoppm", "tesseract"} {
		t.Run(tool, func(t *testing.T) {
			runner := &stubRunner{failTool: tool}
			ocr, base := newTestOCR(t, runner, nil)

			_, err := ocr.Recognize(context.Background(), fakePDF, "application/pdf")
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrExtraction)
			assert.Equal(t, "boom", apperr.MessageOf(err))
			assertEmptyDir(t, base)
		})
	}
}

func TestRecognizeTimeout(t *testing.T) {
	runner := &stubRunner{block: true}
	ocr, base := newTestOCR(t, runner, func(c *OCRConfig) { c.Timeout = 50 * time.Millisecond })

	start := time.Now()
	_, err := ocr.Recognize(context.Background(), fakePDF, "application/pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExtraction)
	assert.Contains(t, apperr.MessageOf(err), "timed out")
	assert.Less(t, time.Since(start), time.Second)
	assertEmptyDir(t, base)
}

func TestRecognizeMissingRasterIsStorageIO(t *testing.T) {
	runner := &stubRunner{skipImage: true}
	ocr, base := newTestOCR(t, runner, nil)

	_, err := ocr.Recognize(context.Background(), fakePDF, "application/pdf")
	assert.ErrorIs(t, err, apperr.ErrStorageIO)
	assertEmptyDir(t, base)
}

func TestRecognizeUnwritableTempDir(t *testing.T) {
	ocr := NewRasterOCR(OCRConfig{TempDir: filepath.Join(t.TempDir(), "missing", "nested")}, &stubRunner{}, nil)

	_, err := ocr.Recognize(context.Background(), fakePDF, "application/pdf")
	assert.ErrorIs(t, err, apperr.ErrStorageIO)
}

func TestRecognizeUnsupportedContent(t *testing.T) {
	runner := &stubRunner{}
	ocr, _ := newTestOCR(t, runner, nil)

	_, err := ocr.Recognize(context.Background(), []byte{0x00, 0x01, 0x02}, "application/zip")
	assert.ErrorIs(t, err, apperr.ErrExtraction)
	assert.Empty(t, runner.names())
}
