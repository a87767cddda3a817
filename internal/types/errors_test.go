package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "message only",
			err:  NewAppError(ErrConfig, "invalid config", nil),
			want: "invalid config",
		},
		{
			name: "with details and cause",
			err:  NewAppErrorWithDetails(ErrAPICall, "call failed", "status 503", errors.New("unavailable")),
			want: "call failed: status 503: unavailable",
		},
		{
			name: "page scoped",
			err:  NewPageError(4, "page processing failed", errors.New("boom")),
			want: "page 4: page processing failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsCode(t *testing.T) {
	inner := NewTranslationError("retries exhausted", errors.New("timeout"))
	page := NewPageError(2, "render failed", inner)
	wrapped := fmt.Errorf("document: %w", page)

	assert.True(t, IsCode(wrapped, ErrPage))
	assert.True(t, IsCode(wrapped, ErrTranslation))
	assert.False(t, IsCode(wrapped, ErrDocument))
	assert.False(t, IsCode(errors.New("plain"), ErrPage))
	assert.False(t, IsCode(nil, ErrPage))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrDocument, CodeOf(fmt.Errorf("open: %w", NewDocumentError("missing", nil))))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestTaxonomyConstructors(t *testing.T) {
	assert.Equal(t, ErrDetection, NewDetectionError("model missing", nil).Code)
	assert.Equal(t, ErrExtraction, NewExtractionError("punctuation only", "...").Code)
	assert.Equal(t, ErrRender, NewRenderError("forced floor size", "4.0pt").Code)

	cause := errors.New("not found")
	docErr := NewDocumentError("cannot open input", cause)
	assert.ErrorIs(t, docErr, cause)
}
