package api

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"property-workflow/internal/approval"
	"property-workflow/internal/config"
	"property-workflow/internal/domain"
	"property-workflow/internal/storage"
)

// fakeProperties backs both the handler and the approval engine.
type fakeProperties struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Property
}

func newFakeProperties() *fakeProperties {
	return &fakeProperties{rows: map[int64]domain.Property{}}
}

func (f *fakeProperties) CreateProperty(_ context.Context, p domain.Property) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	if p.Documents == nil {
		p.Documents = map[domain.DocumentKind]string{}
	}
	f.rows[p.ID] = p
	return p.ID, nil
}

func (f *fakeProperties) add(state domain.ApprovalState) int64 {
	id, _ := f.CreateProperty(context.Background(), domain.Property{PropertyID: fmt.Sprintf("prop-%d", f.nextID+1), Workflow: state})
	return id
}

func (f *fakeProperties) GetProperty(_ context.Context, id int64) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return domain.Property{}, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakeProperties) sorted(keep func(domain.Property) bool) []domain.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Property, 0, len(f.rows))
	for _, p := range f.rows {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeProperties) ListProperties(_ context.Context, includeRejected bool) ([]domain.Property, error) {
	return f.sorted(func(p domain.Property) bool { return includeRejected || !p.Workflow.Rejected }), nil
}

func (f *fakeProperties) ListPropertiesByStatus(_ context.Context, statuses ...domain.Stage) ([]domain.Property, error) {
	return f.sorted(func(p domain.Property) bool {
		for _, s := range statuses {
			if p.Workflow.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (f *fakeProperties) ListPropertyIDs(_ context.Context) ([]int64, error) {
	all := f.sorted(func(domain.Property) bool { return true })
	ids := make([]int64, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (f *fakeProperties) UpdateApprovalState(_ context.Context, id int64, fn domain.Transition) (domain.ApprovalState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return domain.ApprovalState{}, false, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	next, err := fn(p.Workflow)
	if err != nil {
		return p.Workflow, false, err
	}
	if next == p.Workflow {
		return next, false, nil
	}
	p.Workflow = next
	f.rows[id] = p
	return next, true, nil
}

func (f *fakeProperties) SetDocumentReference(_ context.Context, id int64, kind domain.DocumentKind, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	p.Documents[kind] = ref
	f.rows[id] = p
	return nil
}

func (f *fakeProperties) DeleteProperty(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeProperties) Ping(context.Context) error { return nil }

func (f *fakeProperties) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: map[string][]byte{}}
}

func (b *fakeBlob) PutDocument(_ context.Context, propertyID int64, kind domain.DocumentKind, filename, _ string, content []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := storage.DocumentObjectKey(propertyID, kind, filename, time.Unix(0, int64(len(b.objects)+1)))
	b.objects[key] = content
	return key, nil
}

func (b *fakeBlob) ListDocuments(_ context.Context, propertyID int64) ([]storage.StoredDocument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := storage.DocumentPrefix(propertyID)
	out := []storage.StoredDocument{}
	for key, body := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.StoredDocument{ObjectKey: key, Size: int64(len(body))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectKey < out[j].ObjectKey })
	return out, nil
}

func (b *fakeBlob) GetDocument(_ context.Context, objectKey string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, objectKey)
	}
	return body, nil
}

func (b *fakeBlob) RemovePropertyDocuments(_ context.Context, propertyID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := storage.DocumentPrefix(propertyID)
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			delete(b.objects, key)
		}
	}
	return nil
}

func (b *fakeBlob) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for key := range b.objects {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

const testSecret = "test-secret"

func testConfig() config.Config {
	return config.Config{
		WorkflowIDPrefix:   "property-repair",
		TemporalTaskQueue:  "property-workflow-test",
		AllowedUploadBytes: 1 << 20,
		JWTSecret:          testSecret,
		CORSAllowedOrigins: []string{"http://localhost:5174"},
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type testEnv struct {
	props   *fakeProperties
	blob    *fakeBlob
	handler *Handler
}

func newTestEnv() *testEnv {
	props := newFakeProperties()
	blob := newFakeBlob()
	logger := quietLogger()
	h := NewHandler(testConfig(), props, approval.NewEngine(props, logger), blob, nil, logger)
	return &testEnv{props: props, blob: blob, handler: h}
}
