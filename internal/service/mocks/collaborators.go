package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/segmentio/kafka-go"
)

// BlobStore keeps uploaded blobs in memory.
type BlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
	seq       int
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: map[string][]byte{}}
}

func (b *BlobStore) FailUploads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadErr = err
}

func (b *BlobStore) FailDeletes(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteErr = err
}

func (b *BlobStore) Upload(ctx context.Context, data []byte, contentType string) (image domain.Image, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.uploadErr != nil {
		return image, b.uploadErr
	}

	b.seq++
	publicID := fmt.Sprintf("catalog/%d", b.seq)
	b.blobs[publicID] = append([]byte(nil), data...)

	return domain.Image{PublicID: publicID, URL: "https://cdn.test/" + publicID}, nil
}

func (b *BlobStore) Delete(ctx context.Context, publicID string) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deleted = append(b.deleted, publicID)
	if b.deleteErr != nil {
		return b.deleteErr
	}

	delete(b.blobs, publicID)
	return nil
}

// Stored lists the public ids still held by the store.
func (b *BlobStore) Stored() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := make([]string, 0, len(b.blobs))
	for id := range b.blobs {
		res = append(res, id)
	}
	return res
}

func (b *BlobStore) Deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

type PublishedEvent struct {
	EventType string
	Key       string
	Data      interface{}
}

// EventPublisher records every published event.
type EventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	err    error
}

func (p *EventPublisher) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *EventPublisher) Publish(ctx context.Context, eventType string, key string, data interface{}) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	p.events = append(p.events, PublishedEvent{EventType: eventType, Key: key, Data: data})
	return nil
}

func (p *EventPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

func (p *EventPublisher) EventsOfType(eventType string) []PublishedEvent {
	var res []PublishedEvent
	for _, e := range p.Events() {
		if e.EventType == eventType {
			res = append(res, e)
		}
	}
	return res
}

// StockNotifier records low stock alerts.
type StockNotifier struct {
	mu       sync.Mutex
	products []domain.Product
}

func (n *StockNotifier) NotifyLowStock(ctx context.Context, product domain.Product) (err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.products = append(n.products, product)
	return nil
}

func (n *StockNotifier) Notified() []domain.Product {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Product(nil), n.products...)
}

// EventReader serves queued messages and reports io.EOF once drained.
type EventReader struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (r *EventReader) Push(eventType string, data interface{}) error {
	value, err := json.Marshal(dto.KafkaMessage{EventType: eventType, Data: data})
	if err != nil {
		return err
	}

	r.PushRaw(value)
	return nil
}

func (r *EventReader) PushRaw(value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, kafka.Message{Value: value})
}

func (r *EventReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}

	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}

	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}
