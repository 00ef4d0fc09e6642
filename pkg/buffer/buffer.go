package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

type AlertBufferInterface interface {
	Add(alert *models.Alert)
	GetLatest(limit int) []*models.Alert
	GetAlertCount() int64
}

// AlertBuffer keeps the most recent unexpected-CA alerts in a ring
type AlertBuffer struct {
	mu         sync.RWMutex
	buffer     []*models.Alert
	capacity   int
	head       int
	size       int
	alertCount int64
}

// New creates a new alert buffer with the specified capacity
func New(capacity int) AlertBufferInterface {
	if capacity < 1 {
		capacity = 1
	}
	return &AlertBuffer{
		buffer:   make([]*models.Alert, capacity),
		capacity: capacity,
	}
}

// Add adds an alert, overwriting the oldest one when full
func (ab *AlertBuffer) Add(alert *models.Alert) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.buffer[ab.head] = alert
	ab.head = (ab.head + 1) % ab.capacity

	if ab.size < ab.capacity {
		ab.size++
	}

	atomic.AddInt64(&ab.alertCount, 1)
}

// GetLatest returns the most recent alerts (up to limit), newest first
func (ab *AlertBuffer) GetLatest(limit int) []*models.Alert {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	if limit > ab.size {
		limit = ab.size
	}
	if limit < 0 {
		limit = 0
	}

	result := make([]*models.Alert, limit)
	for i := 0; i < limit; i++ {
		idx := (ab.head - 1 - i + ab.capacity) % ab.capacity
		result[i] = ab.buffer[idx]
	}

	return result
}

// GetAlertCount returns the total number of alerts ever added
func (ab *AlertBuffer) GetAlertCount() int64 {
	return atomic.LoadInt64(&ab.alertCount)
}
