package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
)

// TaskRefresh re-fetches one request identity and writes the response to the
// shared cache store.
const TaskRefresh = "cache:refresh"

// QueueRefresh is the asynq queue refresh tasks go to by default.
const QueueRefresh = "refresh"

type RefreshPayload struct {
	Identity string            `json:"identity"`
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Header   map[string]string `json:"header,omitempty"`
	Body     []byte            `json:"body,omitempty"`
	Expiry   string            `json:"expiry"`
}

// PayloadFor captures the parts of task a worker needs. Callbacks and the
// decoder stay behind; the worker stores the raw response.
func PayloadFor(task transport.Task) RefreshPayload {
	return RefreshPayload{
		Identity: task.Identity,
		Method:   string(task.Method),
		URL:      task.URL,
		Header:   task.Header,
		Body:     task.Body,
		Expiry:   task.Expiry.String(),
	}
}

// Task rebuilds the transport task.
func (p RefreshPayload) Task() (transport.Task, error) {
	m, err := request.ParseMethod(p.Method)
	if err != nil {
		return transport.Task{}, err
	}
	exp, err := request.ParseExpiry(p.Expiry)
	if err != nil {
		return transport.Task{}, err
	}
	if p.Identity == "" || p.URL == "" {
		return transport.Task{}, fmt.Errorf("refresh payload needs identity and url")
	}
	return transport.Task{
		Identity: p.Identity,
		Method:   m,
		URL:      p.URL,
		Header:   p.Header,
		Body:     p.Body,
		Expiry:   exp,
	}, nil
}

// NewRefreshTask builds the asynq task. The identity doubles as the task ID,
// so a refresh already waiting in the queue absorbs duplicates from any
// process.
func NewRefreshTask(task transport.Task, queue string) (*asynq.Task, error) {
	if queue == "" {
		queue = QueueRefresh
	}
	payload, err := json.Marshal(PayloadFor(task))
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefresh, payload,
		asynq.TaskID(task.Identity),
		asynq.Queue(queue),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
	), nil
}
