package app

import (
	"math"
	"sort"
	"time"

	"knowledgehub/internal/model"
)

// RetrievalResult is one ranked match: a chunk, its similarity score and the
// owning document's metadata.
type RetrievalResult struct {
	Chunk    model.Chunk
	Document model.Document
	Score    float64
}

// rankChunks scores every chunk against the query embedding and returns the
// matches at or above the threshold, at most count, in deterministic order:
// score descending, then most-recent approval timestamp, then document id,
// then chunk position. Chunks whose document is missing from docs are skipped.
func rankChunks(chunks []model.Chunk, docs map[uint]model.Document, queryVec []float32, threshold float64, count int) []RetrievalResult {
	if count <= 0 || len(chunks) == 0 || len(queryVec) == 0 {
		return nil
	}

	results := make([]RetrievalResult, 0, len(chunks))
	for i := range chunks {
		doc, ok := docs[chunks[i].DocumentID]
		if !ok {
			continue
		}
		score := cosineSimilarity(queryVec, chunks[i].EmbeddingVector())
		if score < threshold {
			continue
		}
		results = append(results, RetrievalResult{
			Chunk:    chunks[i],
			Document: doc,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ai, aj := approvalTime(results[i].Document), approvalTime(results[j].Document)
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		if results[i].Document.ID != results[j].Document.ID {
			return results[i].Document.ID < results[j].Document.ID
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})

	if count < len(results) {
		results = results[:count]
	}
	return results
}

func approvalTime(doc model.Document) time.Time {
	if doc.ApprovedAt != nil {
		return *doc.ApprovedAt
	}
	return time.Time{}
}

// cosineSimilarity returns the cosine of the angle between a and b, 0 for
// mismatched or empty vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
