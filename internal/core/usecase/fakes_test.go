package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// fakeCatalog mirrors the conditional-update semantics of the real catalog
// behind a mutex so concurrency tests exercise the same claim contract.
type fakeCatalog struct {
	mu      sync.Mutex
	entries map[string]*domain.CatalogEntry

	registerErr error
	claimErr    error

	beforeMarkEmbedded func()
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{entries: make(map[string]*domain.CatalogEntry)}
}

func (f *fakeCatalog) put(entry *domain.CatalogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *entry
	f.entries[entry.ContentHash] = &clone
}

func (f *fakeCatalog) get(hash string) *domain.CatalogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[hash]; ok {
		clone := *e
		return &clone
	}
	return nil
}

func (f *fakeCatalog) Register(_ context.Context, entry *domain.CatalogEntry) (bool, error) {
	if f.registerErr != nil {
		return false, f.registerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.entries[entry.ContentHash]; ok {
		*entry = *existing
		return false, nil
	}
	clone := *entry
	f.entries[entry.ContentHash] = &clone
	return true, nil
}

func (f *fakeCatalog) GetByHash(_ context.Context, hash string) (*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (f *fakeCatalog) ClaimForEmbedding(_ context.Context, hash string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return false, nil
	}
	if e.Status != domain.StatusPending && e.Status != domain.StatusFailed {
		return false, nil
	}
	e.Status = domain.StatusEmbedding
	e.IngestionError = ""
	return true, nil
}

func (f *fakeCatalog) MarkEmbedded(_ context.Context, hash string, chunkCount int) error {
	if f.beforeMarkEmbedded != nil {
		f.beforeMarkEmbedded()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.StatusEmbedding {
		return domain.WrapError(domain.ErrInvalidTransition, "mark embedded",
			transitionErr(e.Status, domain.StatusEmbedded))
	}
	e.Status = domain.StatusEmbedded
	e.ChunkCount = chunkCount
	e.IngestionError = ""
	return nil
}

func (f *fakeCatalog) MarkFailed(_ context.Context, hash string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.StatusEmbedding {
		return domain.WrapError(domain.ErrInvalidTransition, "mark failed",
			transitionErr(e.Status, domain.StatusFailed))
	}
	e.Status = domain.StatusFailed
	e.IngestionError = message
	return nil
}

func (f *fakeCatalog) Retry(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.StatusFailed {
		return domain.ErrNotFailed
	}
	e.Status = domain.StatusPending
	e.IngestionError = ""
	return nil
}

func (f *fakeCatalog) ForceReset(_ context.Context, hash string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.StatusEmbedding {
		return nil
	}
	e.Status = domain.StatusFailed
	e.IngestionError = message
	return nil
}

func (f *fakeCatalog) SetEnabled(_ context.Context, hash string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[hash]
	if !ok {
		return domain.ErrNotFound
	}
	e.Enabled = enabled
	return nil
}

func (f *fakeCatalog) DisableOthersForOrigin(_ context.Context, originURI, keepHash string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for hash, e := range f.entries {
		if hash != keepHash && e.OriginURI == originURI && e.Enabled {
			e.Enabled = false
			count++
		}
	}
	return count, nil
}

func (f *fakeCatalog) List(_ context.Context, _ domain.DocumentFilter, _, _ int) (*domain.DocumentPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &domain.DocumentPage{}
	for _, e := range f.entries {
		page.Documents = append(page.Documents, *e)
	}
	page.Total = len(page.Documents)
	return page, nil
}

func (f *fakeCatalog) GroupedStatus(_ context.Context) (*domain.GroupedStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	grouped := &domain.GroupedStatus{StatusCounts: make(map[domain.IngestionStatus]int)}
	for _, e := range f.entries {
		grouped.StatusCounts[e.Status]++
	}
	return grouped, nil
}

func transitionErr(from, to domain.IngestionStatus) error {
	return domain.WrapError(domain.ErrInvalidTransition, "transition",
		&transitionError{from: from, to: to})
}

type transitionError struct {
	from, to domain.IngestionStatus
}

func (e *transitionError) Error() string {
	return string(e.from) + " -> " + string(e.to)
}

type fakeBlobStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string

	storeErr error
	readErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: make(map[string][]byte)}
}

func (f *fakeBlobStore) Store(_ context.Context, hash string, content []byte) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[hash] = append([]byte(nil), content...)
	return "blobs/" + hash, nil
}

func (f *fakeBlobStore) Read(_ context.Context, hash string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.data[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), content...), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, hash)
	f.deleted = append(f.deleted, hash)
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	published []string

	publishErr error
}

func (f *fakeQueue) PublishResourceRegistered(_ context.Context, hash string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, hash)
	return nil
}

func (f *fakeQueue) SubscribeResourceRegistered(context.Context, func(context.Context, string, time.Time) error) error {
	return nil
}

type fakeChunkStore struct {
	mu       sync.Mutex
	byDoc    map[string][]domain.Chunk
	replaces int
	deletes  []string

	replaceErr error
	deleteErr  error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{byDoc: make(map[string][]domain.Chunk)}
}

func (f *fakeChunkStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDoc[documentID] = append([]domain.Chunk(nil), chunks...)
	f.replaces++
	return nil
}

func (f *fakeChunkStore) DeleteChunks(_ context.Context, documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byDoc, documentID)
	f.deletes = append(f.deletes, documentID)
	return nil
}

func (f *fakeChunkStore) EligibleChunks(context.Context) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, chunks := range f.byDoc {
		out = append(out, chunks...)
	}
	return out, nil
}

// fakeChunker splits on newlines so tests control chunk counts exactly.
type fakeChunker struct{}

func (fakeChunker) Split(text string) []domain.Chunk {
	var out []domain.Chunk
	start := 0
	for _, line := range splitLines(text) {
		if line == "" {
			start++
			continue
		}
		out = append(out, domain.Chunk{
			ChunkIndex: len(out),
			Text:       line,
			StartChar:  start,
			EndChar:    start + len(line),
		})
		start += len(line) + 1
	}
	return out
}

func splitLines(text string) []string {
	var out []string
	current := ""
	for _, r := range text {
		if r == '\n' {
			out = append(out, current)
			current = ""
			continue
		}
		current += string(r)
	}
	out = append(out, current)
	return out
}

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
	failWith error
	dim      int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	dim := f.dim
	if dim <= 0 {
		dim = 3
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, dim)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ *domain.CatalogEntry, content []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(content), nil
}
