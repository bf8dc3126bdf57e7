package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"knowledgehub/internal/ai"
	"knowledgehub/internal/model"
	"knowledgehub/internal/platform/rabbitmq"
	"knowledgehub/internal/repository"
)

const (
	chunkSize          = 512
	chunkOverlap       = 64
	embeddingBatchSize = 10 // providers often limit batch size
)

// IndexWorker consumes index events and rebuilds a document's chunks:
// split the content, embed each piece in batches, and swap the chunk rows.
// Replacement is idempotent, so redelivered events converge.
type IndexWorker struct {
	conn      *amqp.Connection
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	client    *ai.OpenAICompatibleClient
	embConfig ai.EmbeddingConfig
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIndexWorker(
	conn *amqp.Connection,
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	client *ai.OpenAICompatibleClient,
	embConfig ai.EmbeddingConfig,
	queueName string,
) *IndexWorker {
	return &IndexWorker{
		conn:      conn,
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		client:    client,
		embConfig: embConfig,
		queueName: queueName,
	}
}

func (w *IndexWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var event rabbitmq.IndexEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					log.Printf("worker decode index event failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.index(workerCtx, event.DocumentID); err != nil {
					log.Printf("worker index document %d failed: %v", event.DocumentID, err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IndexWorker) index(ctx context.Context, documentID uint) error {
	doc, err := w.docRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		// Deleted between publish and consume; nothing to index.
		return nil
	}
	switch doc.Status {
	case model.StatusPending, model.StatusApproved:
	default:
		return nil
	}

	pieces := chunkText(doc.Content, chunkSize, chunkOverlap)
	if len(pieces) == 0 {
		return w.chunkRepo.ReplaceForDocument(doc.ID, nil)
	}

	var embeddings [][]float32
	for i := 0; i < len(pieces); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batched, err := w.client.EmbedBatch(ctx, w.embConfig, pieces[i:end])
		if err != nil {
			return err
		}
		embeddings = append(embeddings, batched...)
	}
	if len(embeddings) != len(pieces) {
		return fmt.Errorf("embedding count mismatch: %d pieces, %d vectors", len(pieces), len(embeddings))
	}

	chunks := make([]model.Chunk, len(pieces))
	for i := range pieces {
		chunks[i] = model.Chunk{
			DocumentID: doc.ID,
			Position:   i,
			Content:    pieces[i],
		}
		chunks[i].SetEmbedding(embeddings[i])
	}
	return w.chunkRepo.ReplaceForDocument(doc.ID, chunks)
}

func (w *IndexWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// chunkText splits text into overlapping chunks by rune count.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = chunkSize
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); i += size - overlap {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
