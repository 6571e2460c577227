package extraction

import (
	"context"
	"maps"
	"slices"
	"sync"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
)

// Fake echoes declared fields back as extracted, so local runs and tests get a
// deterministic pass. Per-kind overrides replace the echo.
type Fake struct {
	mu      sync.Mutex
	results map[ports.DocumentKind]*ports.ExtractionResult
	errs    map[ports.DocumentKind]error
	calls   []ports.ExtractionRequest
}

func NewFake() *Fake {
	return &Fake{
		results: make(map[ports.DocumentKind]*ports.ExtractionResult),
		errs:    make(map[ports.DocumentKind]error),
	}
}

// Returns makes the fake answer kind with result.
func (f *Fake) Returns(kind ports.DocumentKind, result *ports.ExtractionResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[kind] = result
	return f
}

// Fails makes the fake return err for kind.
func (f *Fake) Fails(kind ports.DocumentKind, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[kind] = err
	return f
}

// Calls returns the requests seen so far.
func (f *Fake) Calls() []ports.ExtractionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *Fake) Extract(_ context.Context, req ports.ExtractionRequest) (*ports.ExtractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.Kind]; err != nil {
		return nil, err
	}
	if res, ok := f.results[req.Kind]; ok {
		out := *res
		out.Fields = maps.Clone(res.Fields)
		return &out, nil
	}
	return &ports.ExtractionResult{Fields: models.ExtractedFields(maps.Clone(req.Declared)), Pass: true}, nil
}
