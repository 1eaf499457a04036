package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/identity"
)

// StaticClassifier answers from a fixed table. Unknown users are citizens.
type StaticClassifier struct {
	Classes map[string]entity.Classification
	Err     error

	calls atomic.Int32
}

func (c *StaticClassifier) Classify(ctx context.Context, userID, credential string) (entity.Classification, error) {
	c.calls.Add(1)
	if c.Err != nil {
		return entity.ClassificationUnknown, c.Err
	}
	if class, ok := c.Classes[userID]; ok {
		return class, nil
	}
	return entity.ClassificationCitizen, nil
}

func (c *StaticClassifier) Calls() int {
	return int(c.calls.Load())
}

// Caller builds a request identity backed by classifier.
func Caller(userID string, classifier identity.Classifier) *identity.Context {
	return identity.New(userID, map[string]any{"user_id": userID}, "token-"+userID, classifier)
}

// RecordingPublisher keeps every published message in memory.
type RecordingPublisher struct {
	mu         sync.Mutex
	events     []entity.DocumentEvent
	repairJobs []entity.MetadataRepairJob

	Err error
}

func (p *RecordingPublisher) PublishDocumentEvent(ctx context.Context, event entity.DocumentEvent) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) PublishMetadataRepair(ctx context.Context, job entity.MetadataRepairJob) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repairJobs = append(p.repairJobs, job)
	return nil
}

func (p *RecordingPublisher) Events() []entity.DocumentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.DocumentEvent(nil), p.events...)
}

func (p *RecordingPublisher) RepairJobs() []entity.MetadataRepairJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.MetadataRepairJob(nil), p.repairJobs...)
}

// EventTypes lists the types of the recorded events in publish order.
func (p *RecordingPublisher) EventTypes() []entity.DocumentEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]entity.DocumentEventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// Logger records formatted lines.
type Logger struct {
	mu    sync.Mutex
	lines []string
}

func (l *Logger) InfoWithContextf(ctx context.Context, format string, args ...any) {
	l.add("INFO " + fmt.Sprintf(format, args...))
}

func (l *Logger) WarningWithContextf(ctx context.Context, format string, args ...any) {
	l.add("WARN " + fmt.Sprintf(format, args...))
}

func (l *Logger) ErrorWithContextf(ctx context.Context, err error, format string, args ...any) {
	l.add(fmt.Sprintf("ERROR %s: %v", fmt.Sprintf(format, args...), err))
}

func (l *Logger) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
