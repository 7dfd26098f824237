package core

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogSink is a BlockSink that logs every committed block through logrus and
// fans it out to any number of registered subscriber channels, tagging each
// notification with a fresh correlation id so a block's log line and its
// delivered CommittedBlock can be matched up downstream.
type LogSink struct {
	log *logrus.Logger

	mu          sync.Mutex
	subscribers map[string]chan CommittedBlock
}

// NewLogSink constructs a LogSink. A nil logger falls back to logrus's
// standard logger.
func NewLogSink(log *logrus.Logger) *LogSink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogSink{log: log, subscribers: make(map[string]chan CommittedBlock)}
}

// Subscribe registers a buffered channel that receives every block committed
// from this point on. It returns an unsubscribe func.
func (s *LogSink) Subscribe(buffer int) (<-chan CommittedBlock, func()) {
	ch := make(chan CommittedBlock, buffer)
	id := uuid.NewString()
	s.mu.Lock()
	s.subscribers[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
		close(ch)
	}
}

// NotifyBlockCommitted logs block's summary and fans it out to every current
// subscriber. A subscriber whose channel is full is skipped for this block
// rather than blocking the builder.
func (s *LogSink) NotifyBlockCommitted(block CommittedBlock) error {
	correlationID := uuid.NewString()
	s.log.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"block":          block.BlockNumber,
		"root":           block.NewRoot,
		"ops":            len(block.Ops),
		"fee_account":    block.FeeAccountID,
	}).Info("block committed")

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- block:
		default:
			s.log.WithFields(logrus.Fields{
				"correlation_id": correlationID,
				"subscriber":     id,
			}).Warn("block notification dropped: subscriber channel full")
		}
	}
	return nil
}
