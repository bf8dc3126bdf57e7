package app

import (
	"strings"

	"knowledgehub/internal/model"
)

const (
	defaultContextBudget  = 4000
	defaultPerDocumentCap = 2
	defaultResultCap      = 5
	contextDelimiter      = "\n---\n"
)

// Citation points the answer back at one source document.
type Citation struct {
	DocumentID uint        `json:"document_id"`
	Title      string      `json:"title"`
	Layer      model.Layer `json:"layer"`
	Score      float64     `json:"score"`
}

// AssembledContext is the bounded context handed to the generation provider.
// Empty Text with empty Citations is a valid state, not an error.
type AssembledContext struct {
	Text      string
	Citations []Citation
}

// assembleContext selects chunks from the ranked results subject to a
// per-document cap (no single document may dominate a small budget) and a
// result cap, joins their text in rank order, and stops adding from the
// lowest-ranked end once the character budget would be exceeded. Citations
// are deduplicated per document, in inclusion order, carrying the document's
// best score.
func assembleContext(results []RetrievalResult, charBudget, perDocCap, resultCap int) AssembledContext {
	if charBudget <= 0 {
		charBudget = defaultContextBudget
	}
	if perDocCap <= 0 {
		perDocCap = defaultPerDocumentCap
	}
	if resultCap <= 0 {
		resultCap = defaultResultCap
	}

	var (
		parts    []string
		used     int
		perDoc   = make(map[uint]int)
		cited    = make(map[uint]bool)
		citation []Citation
	)
	for _, r := range results {
		if len(parts) >= resultCap {
			break
		}
		if perDoc[r.Document.ID] >= perDocCap {
			continue
		}
		cost := len(r.Chunk.Content)
		if len(parts) > 0 {
			cost += len(contextDelimiter)
		}
		if used+cost > charBudget {
			break
		}
		parts = append(parts, r.Chunk.Content)
		used += cost
		perDoc[r.Document.ID]++
		if !cited[r.Document.ID] {
			cited[r.Document.ID] = true
			citation = append(citation, Citation{
				DocumentID: r.Document.ID,
				Title:      r.Document.Title,
				Layer:      r.Document.Layer,
				Score:      r.Score,
			})
		}
	}

	return AssembledContext{
		Text:      strings.Join(parts, contextDelimiter),
		Citations: citation,
	}
}
