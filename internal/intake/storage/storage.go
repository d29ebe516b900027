package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"

	"github.com/genelab/lab-portal/internal/intake/domain"
)

// JobStore keeps intake jobs in memory until they expire.
// Each update refreshes the job's TTL.
type JobStore struct {
	mu    sync.Mutex // serializes read-modify-write in Update
	cache *cache.Cache
}

// NewJobStore creates a job store whose entries expire after ttl
func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		cache: cache.New(ttl, ttl/2),
	}
}

// GenerateJobID creates a random job ID
func GenerateJobID() string {
	return uuid.NewString()
}

// Store stores an intake job
func (s *JobStore) Store(job *domain.IntakeJob) {
	cp := *job
	s.cache.SetDefault(job.JobID, &cp)
}

// Get returns a snapshot of the job, or nil if unknown or expired
func (s *JobStore) Get(jobID string) *domain.IntakeJob {
	v, ok := s.cache.Get(jobID)
	if !ok {
		return nil
	}
	cp := *v.(*domain.IntakeJob)
	return &cp
}

// Update applies fn to a copy of the job and stores the result.
// Unknown or expired jobs are left alone.
func (s *JobStore) Update(jobID string, fn func(*domain.IntakeJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(jobID)
	if !ok {
		return
	}
	cp := *v.(*domain.IntakeJob)
	fn(&cp)
	s.cache.SetDefault(jobID, &cp)
}

// Delete removes a job
func (s *JobStore) Delete(jobID string) {
	s.cache.Delete(jobID)
}

// Len returns the number of live jobs
func (s *JobStore) Len() int {
	return s.cache.ItemCount()
}

// CachedResult is an OCR result remembered for identical uploads
type CachedResult struct {
	Result    *domain.OCRResult
	Processor string
}

// ResultCache remembers OCR results by the SHA-256 of the uploaded bytes so a
// re-uploaded scan does not go through the engine again.
type ResultCache struct {
	lru *lru.Cache[string, CachedResult]
}

// NewResultCache creates a cache holding up to size results
func NewResultCache(size int) (*ResultCache, error) {
	if size < 1 {
		size = 1
	}
	c, err := lru.New[string, CachedResult](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: c}, nil
}

// Get looks up a result by content hash
func (c *ResultCache) Get(hash string) (CachedResult, bool) {
	return c.lru.Get(hash)
}

// Add stores a result under its content hash
func (c *ResultCache) Add(hash string, r CachedResult) {
	c.lru.Add(hash, r)
}

// Len returns the number of cached results
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// ContentHash returns the hex SHA-256 of data
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ZeroBytes overwrites a byte slice with zeros so patient scans do not
// linger in memory after processing.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
