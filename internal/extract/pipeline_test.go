package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-backend/internal/fields"
	"kyc-backend/internal/shared/apperr"
)

type stubText struct {
	text string
	err  error
}

func (s stubText) Text(context.Context, []byte, string) (string, error) { return s.text, s.err }

type countingOCR struct {
	text  string
	err   error
	calls int
}

func (c *countingOCR) Recognize(context.Context, []byte, string) (string, error) {
	c.calls++
	return c.text, c.err
}

func str(s string) *string { return &s }

func newPipeline(text TextLayer, ocr Recognizer) *Pipeline {
	return &Pipeline{Text: text, OCR: ocr, Fields: fields.Default()}
}

func TestPipelineUsesTextLayer(t *testing.T) {
	ocr := &countingOCR{}
	p := newPipeline(stubText{text: "Full Name:   Jane Doe\n ID Number: A1234567\tDOB: 05/10/1990"}, ocr)

	res, err := p.Extract(context.Background(), "National ID", "application/pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, MethodText, res.Method)
	assert.Equal(t, 0, ocr.calls)
	assert.Equal(t, fields.Record{
		"fullName": str("Jane Doe"),
		"idNumber": str("A1234567"),
		"dob":      str("05/10/1990"),
	}, res.Fields)
}

func TestPipelineFallsBackToOCROnce(t *testing.T) {
	ocr := &countingOCR{text: "Passport Number: X1234567 Nationality: Kenyan"}
	p := newPipeline(stubText{text: "  scan  "}, ocr)

	res, err := p.Extract(context.Background(), "passport", "application/pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, MethodOCR, res.Method)
	assert.Equal(t, str("X1234567"), res.Fields["passportNumber"])
	assert.Equal(t, str("Kenyan"), res.Fields["nationality"])
	assert.Nil(t, res.Fields["fullName"])
}

func TestPipelineThresholdCountsCharacters(t *testing.T) {
	// 17 characters but 23 bytes.
	layer := "Zoë Ñúñez Pérez Ó"
	ocr := &countingOCR{text: "Full Name: Zoe Nunez Perez"}
	p := newPipeline(stubText{text: layer}, ocr)

	res, err := p.Extract(context.Background(), "national id", "application/pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, MethodOCR, res.Method)
	assert.Equal(t, len("Full Name: Zoe Nunez Perez"), res.TextLength)

	ocr = &countingOCR{}
	p = newPipeline(stubText{text: layer + " Ábcdé"}, ocr)
	res, err = p.Extract(context.Background(), "national id", "application/pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, 0, ocr.calls)
	assert.Equal(t, MethodText, res.Method)
	assert.Equal(t, 23, res.TextLength)
}

func TestPipelineTextLayerErrorFallsBack(t *testing.T) {
	ocr := &countingOCR{text: "Account Name: Mary Jane"}
	p := newPipeline(stubText{err: errors.New("encrypted")}, ocr)

	res, err := p.Extract(context.Background(), "utility bill", "image/png", fakePNG)
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, str("Mary Jane"), res.Fields["accountName"])
}

func TestPipelineOCRFailureIsNonFatal(t *testing.T) {
	ocr := &countingOCR{err: apperr.New(apperr.KindExtraction, "tesseract failed")}
	p := newPipeline(stubText{}, ocr)

	res, err := p.Extract(context.Background(), "National ID", "application/pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "tesseract failed", res.Error)
	assert.Equal(t, fields.Record{"fullName": nil, "idNumber": nil, "dob": nil}, res.Fields)
}

func TestPipelineStorageIOIsFatal(t *testing.T) {
	ocr := &countingOCR{err: apperr.StorageIO(errors.New("disk full"), "write ocr input")}
	p := newPipeline(stubText{}, ocr)

	_, err := p.Extract(context.Background(), "National ID", "application/pdf", fakePDF)
	assert.ErrorIs(t, err, apperr.ErrStorageIO)
}

func TestPipelineSkipsUnsupportedTypes(t *testing.T) {
	ocr := &countingOCR{}
	p := newPipeline(stubText{}, ocr)

	res, err := p.Extract(context.Background(), "library card", "application/pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, ReasonUnsupportedType, res.Reason)

	res, err = p.Extract(context.Background(), "selfie with id", "image/png", fakePNG)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, ReasonNoRules, res.Reason)
	assert.Equal(t, 0, ocr.calls)
}

func TestPipelineEndToEndWithRasterOCR(t *testing.T) {
	runner := &stubRunner{ocrText: "Full Name: Jane Doe ID Number: A1234567 DOB: 05/10/1990"}
	ocr, base := newTestOCR(t, runner, nil)
	p := &Pipeline{Text: PDFTextLayer{}, OCR: ocr, Fields: fields.Default()}

	res, err := p.Extract(context.Background(), "national id", "application/pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, MethodOCR, res.Method)
	assert.Equal(t, str("A1234567"), res.Fields["idNumber"])
	assert.Equal(t, []string{"pdftoppm", "tesseract"}, runner.names())
	assertEmptyDir(t, base)
}
