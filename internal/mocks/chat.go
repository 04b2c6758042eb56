package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/taskflow-api/internal/notify"
	"github.com/phrazzld/taskflow-api/internal/platform/chat"
)

// MockSender implements chat.Sender, recording every message it is asked to send.
type MockSender struct {
	mu       sync.Mutex
	Messages []chat.Message

	// SendFn, when set, decides the result of each call.
	SendFn func(ctx context.Context, msg chat.Message) error
}

var _ chat.Sender = (*MockSender)(nil)

// Send implements chat.Sender.
func (m *MockSender) Send(ctx context.Context, msg chat.Message) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, msg)
	fn := m.SendFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, msg)
	}
	return nil
}

// Calls returns how many times Send was invoked.
func (m *MockSender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// Sent returns a copy of the recorded messages.
func (m *MockSender) Sent() []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Message(nil), m.Messages...)
}

// MockNotifier implements notify.Notifier by recording jobs instead of
// delivering them.
type MockNotifier struct {
	mu   sync.Mutex
	Jobs []notify.Job

	// BatchFn, when set, computes the SubmitBatch result.
	BatchFn func(ctx context.Context, jobs []notify.Job) notify.BatchResult
}

var _ notify.Notifier = (*MockNotifier)(nil)

// Submit implements notify.Notifier.
func (m *MockNotifier) Submit(_ context.Context, job notify.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Jobs = append(m.Jobs, job)
}

// SubmitBatch implements notify.Notifier. By default every job succeeds.
func (m *MockNotifier) SubmitBatch(ctx context.Context, jobs []notify.Job) notify.BatchResult {
	m.mu.Lock()
	m.Jobs = append(m.Jobs, jobs...)
	fn := m.BatchFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, jobs)
	}
	return notify.BatchResult{Total: len(jobs), Succeeded: len(jobs)}
}

// Submitted returns a copy of every recorded job.
func (m *MockNotifier) Submitted() []notify.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Job(nil), m.Jobs...)
}

// Kinds returns the kinds of the recorded jobs in order.
func (m *MockNotifier) Kinds() []notify.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]notify.Kind, len(m.Jobs))
	for i, j := range m.Jobs {
		kinds[i] = j.Kind
	}
	return kinds
}

// Reset forgets recorded jobs.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Jobs = nil
}
