package pipeline

import (
	"context"
	"fmt"
)

// Generator produces the final answer text from the assembled context.
// The pipeline treats it as opaque; swapping in a hosted model only
// requires satisfying this interface.
type Generator interface {
	Generate(ctx context.Context, query, compressedContext string, intent Intent) (string, error)
}

// StubGenerator is a deterministic template-based generator used when no
// language model is wired in. It frames the assembled context per intent
// so the output is still useful on its own.
type StubGenerator struct{}

func (StubGenerator) Generate(_ context.Context, query, compressedContext string, intent Intent) (string, error) {
	if compressedContext == "" {
		return fmt.Sprintf("No matching context was found for %q. Try a broader query or index more schematics.", query), nil
	}

	var framing string
	switch intent {
	case IntentLookup:
		framing = "Catalog record matching your lookup:"
	case IntentDiagnostic:
		framing = "Diagnostic context assembled from the catalog, session notes, and the relationship graph:"
	case IntentAnalytics:
		framing = "Aggregated context for your analytics question:"
	default:
		framing = "Closest matches for your search:"
	}
	return framing + "\n\n" + compressedContext, nil
}
