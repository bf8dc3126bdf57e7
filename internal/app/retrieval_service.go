package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"knowledgehub/internal/access"
	"knowledgehub/internal/ai"
	"knowledgehub/internal/model"
)

// DocumentStore is the read surface of the document index consulted on the
// retrieval path.
type DocumentStore interface {
	ListSearchable(scopes, previewScopes []access.Scope) ([]model.Document, error)
}

// ChunkStore reads persisted chunks with their embeddings.
type ChunkStore interface {
	ListByDocumentIDs(documentIDs []uint) ([]model.Chunk, error)
}

// DirectorySource supplies the membership snapshot scope resolution needs.
// The production implementation is the redis-backed directory cache.
type DirectorySource interface {
	OrgProjectIDs(ctx context.Context, orgID uint) ([]uint, error)
}

// ProviderClient covers the two external model calls made per request.
type ProviderClient interface {
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error)
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// RetrievalOptions carries the tunables of the pipeline.
type RetrievalOptions struct {
	DefaultThreshold float64
	DefaultCount     int
	ContextBudget    int
	PerDocumentCap   int
	// Personas maps a tenant/persona identifier to the system instruction
	// prefix used for generation. DefaultPersona is used when the request
	// names none (or an unknown one).
	Personas       map[string]string
	DefaultPersona string
}

type RetrievalService struct {
	docStore   DocumentStore
	chunkStore ChunkStore
	dirSource  DirectorySource
	provider   ProviderClient
	embConfig  ai.EmbeddingConfig
	chatConfig ai.ChatConfig
	opts       RetrievalOptions
}

func NewRetrievalService(
	docStore DocumentStore,
	chunkStore ChunkStore,
	dirSource DirectorySource,
	provider ProviderClient,
	embConfig ai.EmbeddingConfig,
	chatConfig ai.ChatConfig,
	opts RetrievalOptions,
) *RetrievalService {
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = 0.5
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = defaultResultCap
	}
	if opts.ContextBudget <= 0 {
		opts.ContextBudget = defaultContextBudget
	}
	if opts.PerDocumentCap <= 0 {
		opts.PerDocumentCap = defaultPerDocumentCap
	}
	if opts.DefaultPersona == "" {
		opts.DefaultPersona = "a careful knowledge-base assistant"
	}
	return &RetrievalService{
		docStore:   docStore,
		chunkStore: chunkStore,
		dirSource:  dirSource,
		provider:   provider,
		embConfig:  embConfig,
		chatConfig: chatConfig,
		opts:       opts,
	}
}

// AskInput is one retrieval request. ThresholdSet/CountSet distinguish an
// explicit value (including zero) from an absent one, which takes the
// configured default.
type AskInput struct {
	Principal    access.Principal
	Query        string
	LayerContext string
	Threshold    float64
	ThresholdSet bool
	Count        int
	CountSet     bool
	Preview      bool
	Persona      string
}

// AskResult is the answer plus the sources it is grounded in.
type AskResult struct {
	Answer  string     `json:"answer"`
	Sources []Citation `json:"sources"`
}

// Ask runs one pass of the pipeline: resolve scopes, embed the query, search
// the allowed set, assemble bounded context, generate the answer. Zero
// matches is a success with empty sources, never an error.
func (s *RetrievalService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidInput)
	}
	threshold := input.Threshold
	if !input.ThresholdSet {
		threshold = s.opts.DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: match_threshold must be within [0,1]", ErrInvalidInput)
	}
	count := input.Count
	if !input.CountSet {
		count = s.opts.DefaultCount
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: match_count must not be negative", ErrInvalidInput)
	}

	acc, err := s.resolveAccess(ctx, input.Principal)
	if err != nil {
		return nil, err
	}
	if input.Preview && !acc.CanPreviewUnapproved {
		return nil, fmt.Errorf("%w: preview of unapproved documents requires validator capability", ErrPermissionDenied)
	}
	if input.LayerContext != "" {
		layer := model.Layer(input.LayerContext)
		if !layer.Valid() {
			return nil, fmt.Errorf("%w: unknown layer_context %q", ErrInvalidInput, input.LayerContext)
		}
		acc = acc.Restrict(layer)
		if len(acc.Scopes) == 0 {
			return nil, fmt.Errorf("%w: no readable scope in layer %q", ErrPermissionDenied, layer)
		}
	}

	results, err := s.search(ctx, acc, query, threshold, count, input.Preview)
	if err != nil {
		return nil, err
	}

	assembled := assembleContext(results, s.opts.ContextBudget, s.opts.PerDocumentCap, count)

	answer, err := s.generate(ctx, input.Persona, assembled.Text, query)
	if err != nil {
		return nil, err
	}

	sources := assembled.Citations
	if sources == nil {
		sources = []Citation{}
	}
	return &AskResult{
		Answer:  strings.TrimSpace(answer),
		Sources: sources,
	}, nil
}

func (s *RetrievalService) resolveAccess(ctx context.Context, p access.Principal) (access.Access, error) {
	var dir access.Directory
	if p.AppRole == access.RoleOrgAdmin && p.OrgID != nil {
		ids, err := s.dirSource.OrgProjectIDs(ctx, *p.OrgID)
		if err != nil {
			return access.Access{}, fmt.Errorf("load org projects failed: %w", err)
		}
		dir.OrgProjectIDs = ids
	}
	return access.Resolve(p, dir), nil
}

func (s *RetrievalService) search(ctx context.Context, acc access.Access, query string, threshold float64, count int, preview bool) ([]RetrievalResult, error) {
	if count == 0 {
		return nil, nil
	}

	queryVec, err := s.embedWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	var previewScopes []access.Scope
	if preview {
		previewScopes = acc.PreviewScopes
	}
	docs, err := s.docStore.ListSearchable(acc.Scopes, previewScopes)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	docsByID := make(map[uint]model.Document, len(docs))
	docIDs := make([]uint, 0, len(docs))
	for _, d := range docs {
		docsByID[d.ID] = d
		docIDs = append(docIDs, d.ID)
	}

	chunks, err := s.chunkStore.ListByDocumentIDs(docIDs)
	if err != nil {
		return nil, err
	}

	return rankChunks(chunks, docsByID, queryVec, threshold, count), nil
}

func (s *RetrievalService) embedWithRetry(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.provider.Embed(ctx, s.embConfig, query)
	if err == nil {
		return vec, nil
	}
	if !retryable(err) {
		return nil, err
	}
	return s.provider.Embed(ctx, s.embConfig, query)
}

func (s *RetrievalService) generate(ctx context.Context, persona, contextText, query string) (string, error) {
	instruction := s.opts.DefaultPersona
	if persona != "" {
		if p, ok := s.opts.Personas[persona]; ok {
			instruction = p
		}
	}

	var system string
	if contextText == "" {
		system = "You are " + instruction + ". No relevant material was found in the knowledge base for this question. " +
			"Tell the user that no relevant material was found. Do not fabricate an answer."
	} else {
		system = "You are " + instruction + ". Answer the user's question based only on the following context. " +
			"If the context does not contain enough information, say so. Do not make up facts.\n\nContext:\n" + contextText
	}

	messages := []ai.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: query},
	}

	answer, err := s.provider.Complete(ctx, s.chatConfig, messages)
	if err == nil {
		return answer, nil
	}
	if !retryable(err) {
		return "", err
	}
	return s.provider.Complete(ctx, s.chatConfig, messages)
}

// retryable permits exactly one retry for classified-transient provider
// failures; everything else propagates immediately.
func retryable(err error) bool {
	var upstream *ai.UpstreamError
	return errors.As(err, &upstream) && upstream.Transient()
}
