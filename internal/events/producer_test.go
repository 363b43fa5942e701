package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/i474232898/weather-lookup/internal/weather"
)

type fakeClient struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeClient) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func TestPublishKeysByLookupID(t *testing.T) {
	client := &fakeClient{}
	p := &Producer{topic: "weather.state", client: client}

	st := weather.State{LookupID: "abc", Status: weather.StatusSuccess, Unit: weather.UnitMetric}
	if err := p.Publish(context.Background(), st); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(client.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(client.records))
	}
	rec := client.records[0]
	if rec.Topic != "weather.state" || string(rec.Key) != "abc" {
		t.Fatalf("unexpected record topic=%s key=%s", rec.Topic, rec.Key)
	}

	var decoded weather.State
	if err := json.Unmarshal(rec.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Status != weather.StatusSuccess {
		t.Fatalf("unexpected decoded state %+v", decoded)
	}
}

func TestPublishReturnsBrokerError(t *testing.T) {
	p := &Producer{topic: "weather.state", client: &fakeClient{err: errors.New("not leader")}}

	if err := p.Publish(context.Background(), weather.State{}); err == nil {
		t.Fatal("expected an error")
	}
}

func decodeStatus(t *testing.T, rec *kgo.Record) weather.Status {
	t.Helper()
	var st weather.State
	if err := json.Unmarshal(rec.Value, &st); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	return st.Status
}

func TestCloseWaitsForQueuedPublishes(t *testing.T) {
	client := &fakeClient{}
	p := newProducer(client, "weather.state")

	for i := 0; i < 5; i++ {
		p.OnStateChange(weather.State{Status: weather.StatusLoading})
	}
	p.Close()

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.records) != 5 || !client.closed {
		t.Fatalf("expected 5 records before close, got %d (closed=%v)", len(client.records), client.closed)
	}
}

func TestStateChangesArePublishedInOrder(t *testing.T) {
	client := &fakeClient{}
	p := newProducer(client, "weather.state")

	want := []weather.Status{
		weather.StatusLoading, weather.StatusSuccess,
		weather.StatusLoading, weather.StatusFailed,
		weather.StatusLoading, weather.StatusSuccess,
	}
	for _, status := range want {
		p.OnStateChange(weather.State{LookupID: "lookup-1", Status: status})
	}
	p.Close()

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(client.records))
	}
	for i, rec := range client.records {
		if got := decodeStatus(t, rec); got != want[i] {
			t.Fatalf("record %d: expected %s, got %s", i, want[i], got)
		}
	}
	if last := decodeStatus(t, client.records[len(client.records)-1]); last != weather.StatusSuccess {
		t.Fatalf("expected the last record to be success, got %s", last)
	}
}

func TestStateChangesAfterCloseAreDropped(t *testing.T) {
	client := &fakeClient{}
	p := newProducer(client, "weather.state")
	p.Close()

	p.OnStateChange(weather.State{Status: weather.StatusSuccess})

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.records) != 0 {
		t.Fatalf("expected no records after close, got %d", len(client.records))
	}
}
