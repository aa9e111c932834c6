package port

import (
	"context"

	"github.com/steuerflow/taxfiling-api/internal/domain"
)

// ObjectStorage uploads filing documents and returns a public URL for
// each stored object.
type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// SummaryRenderer produces the PDF summary of a completed filing,
// rendered in German with the filing language alongside.
type SummaryRenderer interface {
	Render(form *domain.TaxForm, language string) ([]byte, error)
}
