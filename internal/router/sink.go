package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/metrics"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

// QueryLogWriter persists query log records.
type QueryLogWriter interface {
	InsertQueryLog(ctx context.Context, rec *models.QueryLogRecord) error
}

// Sink accepts query log records without blocking or failing the caller.
type Sink interface {
	Record(rec *models.QueryLogRecord)
}

// BestEffortSink writes each record on its own goroutine with a bounded
// timeout. Errors and panics are logged and dropped.
type BestEffortSink struct {
	writer  QueryLogWriter
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewBestEffortSink(writer QueryLogWriter, timeout time.Duration) *BestEffortSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BestEffortSink{writer: writer, timeout: timeout}
}

func (s *BestEffortSink) Record(rec *models.QueryLogRecord) {
	if s == nil || s.writer == nil || rec == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.write(rec); err != nil {
			metrics.RecordUpstreamFailure("log")
			log.Error().Err(err).
				Int("tenant_id", rec.TenantID).
				Str("query_id", rec.ID).
				Msg("❌ query log write failed")
		}
	}()
}

func (s *BestEffortSink) write(rec *models.QueryLogRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query log writer panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writer.InsertQueryLog(ctx, rec)
}

// Wait blocks until every in-flight write has finished.
func (s *BestEffortSink) Wait() {
	s.wg.Wait()
}
