package ports

import (
	"context"

	"carecheck/internal/verification/models"
)

// DocumentKind tells the extraction service which reader to apply.
type DocumentKind string

const (
	KindIdentityDocument DocumentKind = "identity_document"
	KindWWCCGrantPDF     DocumentKind = "wwcc_grant_pdf"
	KindWWCCScreenshot   DocumentKind = "wwcc_screenshot"
)

// Document is a fetched file ready for extraction.
type Document struct {
	Ref         models.DocumentRef
	ContentType string
	Body        []byte
}

// ExtractionRequest is one call to the extraction service.
type ExtractionRequest struct {
	Kind      DocumentKind
	Documents []Document
	// Declared holds the candidate's typed values for the service to compare against.
	Declared map[string]string
}

// ExtractionResult is what the service read and whether it judged the documents genuine.
type ExtractionResult struct {
	Fields models.ExtractedFields
	Pass   bool
	Issues []string
}

// Extractor reads fields out of uploaded documents.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error)
}

// DocumentSource fetches uploaded files from storage.
type DocumentSource interface {
	Fetch(ctx context.Context, ref models.DocumentRef) (Document, error)
}
