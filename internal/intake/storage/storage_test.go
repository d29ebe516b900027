package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/internal/intake/domain"
)

func TestJobStore(t *testing.T) {
	s := NewJobStore(time.Minute)
	id := GenerateJobID()

	s.Store(&domain.IntakeJob{JobID: id, Status: domain.StatusProcessing})
	assert.Equal(t, 1, s.Len())

	job := s.Get(id)
	require.NotNil(t, job)
	assert.Equal(t, domain.StatusProcessing, job.Status)

	// snapshots are independent of the stored job
	job.Status = domain.StatusFailed
	assert.Equal(t, domain.StatusProcessing, s.Get(id).Status)

	s.Update(id, func(j *domain.IntakeJob) {
		j.Status = domain.StatusCompleted
		j.Warnings = []string{"w"}
	})
	assert.Equal(t, domain.StatusCompleted, s.Get(id).Status)

	s.Update("missing", func(j *domain.IntakeJob) { t.Fatal("must not be called") })

	s.Delete(id)
	assert.Nil(t, s.Get(id))
}

func TestJobStore_Expiry(t *testing.T) {
	s := NewJobStore(20 * time.Millisecond)
	s.Store(&domain.IntakeJob{JobID: "j1"})

	assert.Eventually(t, func() bool { return s.Get("j1") == nil }, time.Second, 10*time.Millisecond)
}

func TestResultCache(t *testing.T) {
	c, err := NewResultCache(2)
	require.NoError(t, err)

	h1 := ContentHash([]byte("scan-1"))
	h2 := ContentHash([]byte("scan-2"))
	h3 := ContentHash([]byte("scan-3"))
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2)

	c.Add(h1, CachedResult{Result: &domain.OCRResult{DocumentName: "nipt"}, Processor: "ocr_engine"})
	c.Add(h2, CachedResult{Result: &domain.OCRResult{}, Processor: "ocr_engine"})
	c.Add(h3, CachedResult{Result: &domain.OCRResult{}, Processor: "ocr_engine"})

	_, ok := c.Get(h1)
	assert.False(t, ok, "oldest entry is evicted")
	got, ok := c.Get(h3)
	assert.True(t, ok)
	assert.Equal(t, "ocr_engine", got.Processor)
	assert.Equal(t, 2, c.Len())
}

func TestZeroBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	ZeroBytes(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
