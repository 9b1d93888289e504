// Package pdf renders printable documents for the site office.
package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GenerateUsageSummary(ctx context.Context, data UsageSummaryData) (io.Reader, error)
	GenerateIssueNote(ctx context.Context, data IssueNoteData) (io.Reader, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}
