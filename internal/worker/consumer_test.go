package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punch.service/internal/metrics"
)

type fakeQueue struct {
	mu         sync.Mutex
	pending    []types.Message
	deleted    []string
	visibility map[string]int32
}

func newFakeQueue(msgs ...types.Message) *fakeQueue {
	return &fakeQueue{pending: msgs, visibility: make(map[string]int32)}
}

func (q *fakeQueue) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	msgs := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(msgs) > 0 {
		return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
	}
	// Long poll until shutdown.
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, *params.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func (q *fakeQueue) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.visibility[*params.ReceiptHandle] = params.VisibilityTimeout
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

// scriptedProcessor answers by message body and closes done after want messages.
type scriptedProcessor struct {
	mu   sync.Mutex
	seen int
	done chan struct{}
	want int
}

func (p *scriptedProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	defer func() {
		p.mu.Lock()
		p.seen++
		if p.seen == p.want {
			close(p.done)
		}
		p.mu.Unlock()
	}()

	switch *msg.Body {
	case "retry":
		return true, 40, errors.New("downstream unavailable")
	case "poison":
		return false, 0, errors.New("malformed")
	default:
		return false, 0, nil
	}
}

func msg(handle, body string) types.Message {
	return types.Message{MessageId: aws.String(handle), ReceiptHandle: aws.String(handle), Body: aws.String(body)}
}

func TestWorkerDisposesMessages(t *testing.T) {
	q := newFakeQueue(msg("h-ok", "ok"), msg("h-retry", "retry"), msg("h-poison", "poison"))
	proc := &scriptedProcessor{done: make(chan struct{}), want: 3}
	m := metrics.NewWith(prometheus.NewRegistry())

	w := NewWorker(q, "http://sqs/q", "export", proc, m)
	w.Concurrency = 2

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	select {
	case <-proc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("messages were not processed")
	}
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.ElementsMatch(t, []string{"h-ok", "h-poison"}, q.deleted)
	assert.Equal(t, map[string]int32{"h-retry": 40}, q.visibility)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("export", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("export", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("export", "dropped")))
}

// unreachableQueue fails every receive, as SQS does during an outage.
type unreachableQueue struct {
	fakeQueue
	receives atomic.Int32
}

func (q *unreachableQueue) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.receives.Add(1)
	return nil, errors.New("dial tcp: connection refused")
}

func TestWorkerPausesAfterReceiveError(t *testing.T) {
	q := &unreachableQueue{}
	w := NewWorker(q, "http://sqs/q", "export", &scriptedProcessor{done: make(chan struct{})}, nil)
	w.Concurrency = 1
	w.ReceiveErrorDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Start(ctx))

	n := q.receives.Load()
	assert.GreaterOrEqual(t, n, int32(2))
	assert.LessOrEqual(t, n, int32(4))
}

func TestReceiveCount(t *testing.T) {
	assert.Equal(t, 1, ReceiveCount(types.Message{}))
	assert.Equal(t, 3, ReceiveCount(types.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}))
	assert.Equal(t, 1, ReceiveCount(types.Message{Attributes: map[string]string{"ApproximateReceiveCount": "x"}}))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, int32(20), Backoff(0))
	assert.Equal(t, int32(20), Backoff(1))
	assert.Equal(t, int32(80), Backoff(3))
	assert.Equal(t, int32(3600), Backoff(12))
}
