package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeBackend struct {
	mu     sync.Mutex
	doc    Document
	gets   int
	puts   []Document
	getErr error
	putErr error
}

func (f *fakeBackend) Get(context.Context) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.doc.Clone(), nil
}

func (f *fakeBackend) Put(_ context.Context, doc Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, doc.Clone())
	if f.putErr != nil {
		return f.putErr
	}
	f.doc = doc.Clone()
	return nil
}

func (f *fakeBackend) counts() (gets, puts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, len(f.puts)
}

func (f *fakeBackend) lastPut() Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.puts) == 0 {
		return nil
	}
	return f.puts[len(f.puts)-1]
}

func doc(t *testing.T, fields map[string]any) Document {
	t.Helper()
	d := Document{}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		d[k] = b
	}
	return d
}

func TestFetchUsesCacheWithinTTL(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{doc: doc(t, map[string]any{"posts": []int{1}})}
	c := New(backend, testLogger(), Options{Now: clock.Now})
	ctx := context.Background()

	for range 3 {
		if _, err := c.Fetch(ctx); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		clock.Advance(time.Second)
	}
	if gets, _ := backend.counts(); gets != 1 {
		t.Errorf("backend reads = %d within TTL, want 1", gets)
	}

	clock.Advance(DefaultTTL)
	if _, err := c.Fetch(ctx); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gets, _ := backend.counts(); gets != 2 {
		t.Errorf("backend reads = %d after TTL, want 2", gets)
	}
}

func TestFetchFailureServesLastGoodSnapshot(t *testing.T) {
	clock := newFakeClock()
	want := doc(t, map[string]any{"posts": []string{"a"}})
	backend := &fakeBackend{doc: want}
	c := New(backend, testLogger(), Options{Now: clock.Now})
	ctx := context.Background()

	if _, err := c.Fetch(ctx); err != nil {
		t.Fatal(err)
	}

	backend.mu.Lock()
	backend.getErr = errors.New("connection reset")
	backend.mu.Unlock()
	clock.Advance(DefaultTTL + time.Second)

	got, err := c.Fetch(ctx)
	if err == nil {
		t.Error("Fetch() should report the backend error")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stale snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchFailureWithoutSnapshotIsEmpty(t *testing.T) {
	backend := &fakeBackend{getErr: errors.New("no route to host")}
	c := New(backend, testLogger(), Options{})

	got, err := c.Fetch(context.Background())
	if err == nil {
		t.Error("Fetch() should report the backend error")
	}
	if len(got) != 0 || got == nil {
		t.Errorf("Fetch() = %v, want empty non-nil document", got)
	}
}

func TestWriteIsVisibleBeforeNetworkWrite(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{}
	c := New(backend, testLogger(), Options{Now: clock.Now, Debounce: time.Hour})
	ctx := context.Background()

	d := doc(t, map[string]any{"posts": []map[string]any{{"id": 1, "text": "hi"}}, "moodHistory": []string{}})
	c.Write(d)

	got, err := c.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("Fetch() after Write mismatch (-want +got):\n%s", diff)
	}
	if gets, puts := backend.counts(); gets != 0 || puts != 0 {
		t.Errorf("backend gets=%d puts=%d, want 0/0 before debounce fires", gets, puts)
	}

	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if diff := cmp.Diff(d, backend.lastPut()); diff != "" {
		t.Errorf("flushed payload mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDoesNotAliasCaller(t *testing.T) {
	c := New(&fakeBackend{}, testLogger(), Options{Debounce: time.Hour})
	d := doc(t, map[string]any{"k": 1})
	c.Write(d)
	d["k"] = json.RawMessage("2")

	got, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(got["k"]) != "1" {
		t.Errorf("cached k = %s, want 1", got["k"])
	}
}

// gatedBackend blocks each Get until release is closed, signalling started
// once the read has begun.
type gatedBackend struct {
	fakeBackend
	started chan struct{}
	release chan struct{}
}

func (b *gatedBackend) Get(ctx context.Context) (Document, error) {
	b.started <- struct{}{}
	<-b.release
	return b.fakeBackend.Get(ctx)
}

func TestFetchCompletingAfterWriteKeepsWrite(t *testing.T) {
	clock := newFakeClock()
	backend := &gatedBackend{
		fakeBackend: fakeBackend{doc: doc(t, map[string]any{"mood": "sad"})},
		started:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	c := New(backend, testLogger(), Options{Now: clock.Now, Debounce: time.Hour})
	defer c.Close(context.Background())
	ctx := context.Background()

	type result struct {
		doc Document
		err error
	}
	fetched := make(chan result, 1)
	go func() {
		d, err := c.Fetch(ctx)
		fetched <- result{d, err}
	}()
	<-backend.started

	written := doc(t, map[string]any{"mood": "happy"})
	c.Write(written)
	close(backend.release)

	r := <-fetched
	if r.err != nil {
		t.Fatalf("Fetch() error = %v", r.err)
	}
	if diff := cmp.Diff(written, r.doc); diff != "" {
		t.Errorf("in-flight Fetch() mismatch (-want +got):\n%s", diff)
	}

	got, err := c.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(written, got); diff != "" {
		t.Errorf("Fetch() after stale read mismatch (-want +got):\n%s", diff)
	}
}

func TestDebounceSendsOnlyLastWrite(t *testing.T) {
	backend := &fakeBackend{}
	debounce := 30 * time.Millisecond
	c := New(backend, testLogger(), Options{Debounce: debounce})

	first := doc(t, map[string]any{"posts": []int{1}})
	second := doc(t, map[string]any{"posts": []int{2, 1}})
	c.Write(first)
	c.Write(second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, puts := backend.counts(); puts > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced write never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(5 * debounce)

	if _, puts := backend.counts(); puts != 1 {
		t.Fatalf("backend writes = %d, want 1", puts)
	}
	if diff := cmp.Diff(second, backend.lastPut()); diff != "" {
		t.Errorf("sent payload mismatch (-want +got):\n%s", diff)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWritePersistsTrimmedPayload(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, testLogger(), Options{Debounce: time.Hour})
	ctx := context.Background()

	posts := make([]map[string]any, 250)
	for i := range posts {
		replies := make([]map[string]string, 60)
		for j := range replies {
			replies[j] = map[string]string{"author": "y", "text": "r"}
		}
		posts[i] = map[string]any{
			"id":      i,
			"text":    strings.Repeat("é", 600),
			"replies": replies,
		}
	}
	c.Write(doc(t, map[string]any{"posts": posts}))

	cached, err := c.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var cachedPosts []json.RawMessage
	if err := json.Unmarshal(cached["posts"], &cachedPosts); err != nil {
		t.Fatal(err)
	}
	if len(cachedPosts) != 250 {
		t.Errorf("cached posts = %d, want untrimmed 250", len(cachedPosts))
	}

	if err := c.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	var persisted []struct {
		Text    string            `json:"text"`
		Replies []json.RawMessage `json:"replies"`
		ID      int               `json:"id"`
	}
	if err := json.Unmarshal(backend.lastPut()["posts"], &persisted); err != nil {
		t.Fatal(err)
	}
	if len(persisted) != MaxEntries {
		t.Errorf("persisted posts = %d, want %d", len(persisted), MaxEntries)
	}
	if persisted[0].ID != 0 {
		t.Errorf("first persisted id = %d, want newest entry 0", persisted[0].ID)
	}
	for _, p := range persisted {
		if n := len([]rune(p.Text)); n > MaxText {
			t.Fatalf("post %d text has %d chars, want <= %d", p.ID, n, MaxText)
		}
		if len(p.Replies) > MaxReplies {
			t.Fatalf("post %d has %d replies, want <= %d", p.ID, len(p.Replies), MaxReplies)
		}
	}
}

func TestFlushErrors(t *testing.T) {
	tests := []struct {
		name      string
		putErr    error
		wantPuts  int
		wantError bool
	}{
		{name: "client error is not retried", putErr: &StatusError{Op: "put bin", Code: 401}, wantPuts: 1, wantError: true},
		{name: "server error is retried", putErr: &StatusError{Op: "put bin", Code: 503}, wantPuts: 3, wantError: true},
		{name: "success", wantPuts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{putErr: tt.putErr}
			c := New(backend, testLogger(), Options{Debounce: time.Hour})
			c.Write(doc(t, map[string]any{"posts": []int{}}))

			err := c.Flush(context.Background())
			if (err != nil) != tt.wantError {
				t.Errorf("Flush() error = %v, wantError %v", err, tt.wantError)
			}
			if _, puts := backend.counts(); puts != tt.wantPuts {
				t.Errorf("backend writes = %d, want %d", puts, tt.wantPuts)
			}
		})
	}
}

func TestCloseFlushesPendingWrite(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, testLogger(), Options{Debounce: time.Hour})
	d := doc(t, map[string]any{"capsules": []int{7}})
	c.Write(d)

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if diff := cmp.Diff(d, backend.lastPut()); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	c.Write(doc(t, map[string]any{"capsules": []int{8}}))
	time.Sleep(10 * time.Millisecond)
	if _, puts := backend.counts(); puts != 1 {
		t.Errorf("backend writes after close = %d, want 1", puts)
	}
}

func TestFlushWithNothingPending(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, testLogger(), Options{})
	if err := c.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if _, puts := backend.counts(); puts != 0 {
		t.Errorf("backend writes = %d, want 0", puts)
	}
}

func TestDisabledClient(t *testing.T) {
	c := New(nil, testLogger(), Options{})
	if c.Configured() {
		t.Error("Configured() = true for nil backend")
	}

	c.Write(doc(t, map[string]any{"posts": []int{1}}))
	got, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Fetch() = %v, want empty document", got)
	}
}
