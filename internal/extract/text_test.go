package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Full Name: Jane Doe", Normalize("  Full\tName:\n\n Jane   Doe \r\n"))
	assert.Equal(t, "", Normalize(" \n\t "))
}

func TestDetectMime(t *testing.T) {
	assert.Equal(t, "application/pdf", DetectMime(fakePDF, "image/png"))
	assert.Equal(t, "image/png", DetectMime(fakePNG, ""))
	assert.Equal(t, "image/tiff", DetectMime([]byte{0x00, 0x01}, "image/TIFF; q=1"))
}

func TestPDFTextLayerPlainText(t *testing.T) {
	got, err := PDFTextLayer{}.Text(context.Background(), []byte("Name: Jane Doe"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Name: Jane Doe", got)
}

func TestPDFTextLayerRejectsBrokenPDF(t *testing.T) {
	_, err := PDFTextLayer{}.Text(context.Background(), fakePDF, "application/pdf")
	assert.Error(t, err)
}

func TestPDFTextLayerRejectsImages(t *testing.T) {
	_, err := PDFTextLayer{}.Text(context.Background(), fakePNG, "image/png")
	assert.Error(t, err)
}
