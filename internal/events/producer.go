// Package events publishes lookup state changes to Kafka so other
// consumers can follow the active snapshot.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// publishTimeout bounds a single produce call.
const publishTimeout = 10 * time.Second

// recordProducer is the part of *kgo.Client the publisher needs.
type recordProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// queueSize bounds the state changes waiting to be published.
const queueSize = 64

// Producer publishes weather.State values keyed by lookup id.
// State changes are published one at a time in the order they were observed.
type Producer struct {
	topic  string
	client recordProducer

	mu     sync.Mutex
	closed bool
	queue  chan weather.State
	done   chan struct{}
}

// NewProducer connects to brokers and publishes to topic.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	log.Printf("INFO: kafka producer initialized for topic %s", topic)
	return newProducer(client, topic), nil
}

func newProducer(client recordProducer, topic string) *Producer {
	p := &Producer{
		topic:  topic,
		client: client,
		queue:  make(chan weather.State, queueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Producer) loop() {
	defer close(p.done)
	for st := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.Publish(ctx, st); err != nil {
			log.Printf("ERROR: kafka async publish: %v", err)
		}
		cancel()
	}
}

// Publish sends one state record and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, st weather.State) error {
	value, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(st.LookupID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// OnStateChange queues st for publishing. It blocks while the queue is full.
func (p *Producer) OnStateChange(st weather.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		log.Printf("DEBUG: kafka producer closed, dropping state of lookup %s", st.LookupID)
		return
	}
	p.queue <- st
}

// Close publishes the queued states and closes the client.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	p.client.Close()
}
