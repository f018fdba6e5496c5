package writer

import (
	"sync"
	"time"
)

// PartStatus is the lifecycle of a single chunk within an upload.
type PartStatus string

const (
	PartPending   PartStatus = "pending"
	PartCompleted PartStatus = "completed"
	PartFailed    PartStatus = "failed"
)

// Part tracks one chunk of a chunked upload, identified by its sequence
// number (S3 calls this a part number; GCS range-writer chunks use the
// same field as a running index).
type Part struct {
	Number     int
	Offset     int64
	Size       int64
	ETag       string
	Status     PartStatus
	RetryCount int
	Err        error
	UpdatedAt  time.Time
}

// UploadStatus is the lifecycle of the whole chunked upload.
type UploadStatus string

const (
	UploadInitiated  UploadStatus = "initiated"
	UploadInProgress UploadStatus = "in_progress"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
	UploadAborted    UploadStatus = "aborted"
)

func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed || s == UploadAborted
}

// UploadState tracks one in-progress chunked write: which parts have
// landed, which are outstanding, and how far along the byte count is.
// Grounded on the teacher's per-upload progress tracking, generalized
// from S3 parts to any chunked writer (block blob blocks, GCS resumable
// ranges).
type UploadState struct {
	mu sync.Mutex

	ID            string
	Path          string
	ChunkSize     int64
	Parts         map[int]*Part
	StartedAt     time.Time
	UpdatedAt     time.Time
	BytesWritten  int64
	Status        UploadStatus
}

func NewUploadState(id, path string, chunkSize int64) *UploadState {
	return &UploadState{
		ID:        id,
		Path:      path,
		ChunkSize: chunkSize,
		Parts:     make(map[int]*Part),
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Status:    UploadInitiated,
	}
}

func (s *UploadState) MarkPartCompleted(number int, offset, size int64, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Parts[number] = &Part{
		Number:    number,
		Offset:    offset,
		Size:      size,
		ETag:      etag,
		Status:    PartCompleted,
		UpdatedAt: time.Now(),
	}
	s.BytesWritten += size
	s.UpdatedAt = time.Now()
	s.Status = UploadInProgress
}

func (s *UploadState) MarkPartFailed(number int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, ok := s.Parts[number]
	if !ok {
		part = &Part{Number: number}
		s.Parts[number] = part
	}
	part.Status = PartFailed
	part.RetryCount++
	part.Err = err
	part.UpdatedAt = time.Now()
	s.UpdatedAt = time.Now()
}

// CompletedParts returns every part currently marked completed, in no
// particular order — callers that need part_number order (multipart
// completion) sort the result themselves. Parts are 0-indexed, so
// iterating a fixed numeric range here would either skip part 0 or
// assume a contiguous map that a still-failed part would break.
func (s *UploadState) CompletedParts() []*Part {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Part, 0, len(s.Parts))
	for _, p := range s.Parts {
		if p.Status == PartCompleted {
			out = append(out, p)
		}
	}
	return out
}

func (s *UploadState) SetStatus(status UploadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.UpdatedAt = time.Now()
}

// StateManager tracks every chunked upload currently in flight, keyed by
// upload ID, so a writer's Close/Abort can be driven from outside the
// goroutine that started the upload if needed.
type StateManager struct {
	mu      sync.RWMutex
	uploads map[string]*UploadState
}

func NewStateManager() *StateManager {
	return &StateManager{uploads: make(map[string]*UploadState)}
}

func (m *StateManager) Track(state *UploadState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[state.ID] = state
}

func (m *StateManager) Get(id string) (*UploadState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.uploads[id]
	return s, ok
}

func (m *StateManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, id)
}

// CalculatePartCount returns how many chunkSize-sized parts totalSize
// splits into, rounding the final partial part up.
func CalculatePartCount(totalSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	count := totalSize / chunkSize
	if totalSize%chunkSize != 0 {
		count++
	}
	if count == 0 {
		count = 1
	}
	return int(count)
}
