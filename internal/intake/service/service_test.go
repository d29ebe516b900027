package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/internal/events"
	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/internal/intake/processor"
	"github.com/genelab/lab-portal/internal/intake/storage"
	"github.com/genelab/lab-portal/pkg/actor"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/messaging"
	"github.com/genelab/lab-portal/pkg/testutil"
)

type fakeProcessor struct {
	name   string
	kind   domain.ContentKind
	result *domain.OCRResult
	err    error
	calls  atomic.Int32
}

func (f *fakeProcessor) Name() string                            { return f.name }
func (f *fakeProcessor) CanProcess(kind domain.ContentKind) bool { return kind == f.kind }
func (f *fakeProcessor) Process(ctx context.Context, data []byte, fileName string) (*domain.OCRResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memoryAudit) Insert(ctx context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryAudit) ListRecent(ctx context.Context, requestedBy string, page, perPage int) ([]domain.AuditEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if e.RequestedBy == requestedBy {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memoryAudit) all() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry(nil), m.entries...)
}

type fixture struct {
	svc   *Service
	audit *memoryAudit
	pub   *testutil.MockPublisher
}

func newFixture(t *testing.T, procs ...processor.Processor) *fixture {
	t.Helper()
	cache, err := storage.NewResultCache(16)
	require.NoError(t, err)

	audit := &memoryAudit{}
	pub := testutil.NewMockPublisher()
	svc := NewService(Config{
		Registry:   processor.NewRegistry(procs...),
		Jobs:       storage.NewJobStore(time.Minute),
		Cache:      cache,
		Audit:      audit,
		Events:     events.NewLabEventPublisher(pub, logger.Nop()),
		JobTimeout: 5 * time.Second,
	}, logger.Nop())

	return &fixture{svc: svc, audit: audit, pub: pub}
}

const hereditaryPayload = `{
	"document_name": "hereditary_cancer",
	"full_name": "Nguyễn Thị Lan",
	"hereditary_cancer": {"package": {"bcare": {"is_selected": true}, "vip_care": {"is_selected": true}}}
}`

func userCtx() context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{ID: "tech-1", Name: "Lan"})
}

func TestStartIntake_PassthroughCompletes(t *testing.T) {
	f := newFixture(t, processor.NewPassthroughProcessor())
	data := []byte(hereditaryPayload)

	job, err := f.svc.StartIntake(userCtx(), data, "export.json")
	require.NoError(t, err)
	require.NotEmpty(t, job.JobID)
	f.svc.Wait()

	got, err := f.svc.GetJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "json_passthrough", got.Processor)
	assert.False(t, got.Cached)
	require.NotNil(t, got.FormValues)
	assert.Equal(t, domain.FormTypeHereditaryCancer, got.FormValues.FormType)
	assert.Equal(t, "vip_care", got.FormValues.CancerScreeningPackage)
	assert.NotEmpty(t, got.Warnings, "double selection is surfaced")
	assert.NotNil(t, got.CompletedAt)

	for _, b := range data {
		require.Zero(t, b, "upload bytes must be zeroed")
	}

	entries := f.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "completed", entries[0].Status)
	assert.Equal(t, "tech-1", entries[0].RequestedBy)
	assert.Equal(t, storage.ContentHash([]byte(hereditaryPayload)), entries[0].ContentSHA256)

	ev, ok := f.pub.Find(messaging.EventIntakeCompleted)
	require.True(t, ok)
	assert.Equal(t, "hereditary_cancer", ev.Payload.(messaging.IntakeCompletedEvent).FormType)
}

func TestStartIntake_CacheHitSkipsProcessors(t *testing.T) {
	proc := &fakeProcessor{
		name:   "fake",
		kind:   domain.KindJSON,
		result: &domain.OCRResult{DocumentName: "nipt"},
	}
	f := newFixture(t, proc)

	_, err := f.svc.StartIntake(userCtx(), []byte(`{"document_name":"nipt"}`), "a.json")
	require.NoError(t, err)
	f.svc.Wait()

	job, err := f.svc.StartIntake(userCtx(), []byte(`{"document_name":"nipt"}`), "b.json")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, job.Status, "cached jobs complete synchronously")
	assert.True(t, job.Cached)
	assert.Equal(t, "fake", job.Processor)
	assert.Equal(t, domain.FormTypeNonInvasivePrenatalTesting, job.FormValues.FormType)
	assert.Equal(t, int32(1), proc.calls.Load())
	assert.Len(t, f.audit.all(), 2)
}

func TestStartIntake_NoProcessor(t *testing.T) {
	f := newFixture(t, processor.NewPassthroughProcessor())

	job, err := f.svc.StartIntake(userCtx(), []byte("just some plain text"), "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "errors.ocr_no_processor", job.ErrorKey)
	f.pub.AssertEventPublished(t, messaging.EventIntakeFailed)

	entries := f.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "none", entries[0].Processor)
	assert.Equal(t, "failed", entries[0].Status)
}

func TestStartIntake_FallsBackToNextProcessor(t *testing.T) {
	first := &fakeProcessor{name: "first", kind: domain.KindJSON, err: errors.Upstream("OCR engine", assert.AnError)}
	second := &fakeProcessor{name: "second", kind: domain.KindJSON, result: &domain.OCRResult{DocumentName: "gene_mutation_testing"}}
	f := newFixture(t, first, second)

	job, err := f.svc.StartIntake(userCtx(), []byte(`{"x":1}`), "a.json")
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.svc.GetJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "second", got.Processor)
	assert.Equal(t, int32(1), first.calls.Load())
}

func TestStartIntake_AllProcessorsFail(t *testing.T) {
	proc := &fakeProcessor{name: "ocr_engine", kind: domain.KindJSON, err: errors.ServiceUnavailable("OCR engine")}
	f := newFixture(t, proc)

	job, err := f.svc.StartIntake(userCtx(), []byte(`{"x":2}`), "a.json")
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.svc.GetJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "errors.service_unavailable", got.ErrorKey)
	assert.Equal(t, map[string]string{"service": "OCR engine"}, got.ErrorParams)

	ev, ok := f.pub.Find(messaging.EventIntakeFailed)
	require.True(t, ok)
	assert.Equal(t, "tech-1", ev.Payload.(messaging.IntakeFailedEvent).RequestedBy)
}

func TestStartIntake_EmptyUpload(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartIntake(userCtx(), nil, "empty.pdf")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestGetJob_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetJob("nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestListAudit_NoStore(t *testing.T) {
	svc := NewService(Config{}, logger.Nop())

	entries, total, err := svc.ListAudit(context.Background(), "tech-1", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, total)
}

func TestListAudit_RequiresRequester(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.ListAudit(context.Background(), "", 1, 20)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}
