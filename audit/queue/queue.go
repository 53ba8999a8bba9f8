// Package auditqueue delivers audit records through a River job queue so
// request handling never waits on the activity log, and failed writes are
// retried by the queue.
package auditqueue

import (
	"context"
	"fmt"

	"github.com/PaulFidika/meterkit/audit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus"
)

const (
	// QueueName is the River queue audit jobs are inserted into.
	QueueName   = "audit"
	maxAttempts = 10
)

// RecordArgs is the job payload: one audit record.
type RecordArgs struct {
	Record audit.Record `json:"record"`
}

func (RecordArgs) Kind() string { return "audit_record" }

func (RecordArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueName, MaxAttempts: maxAttempts}
}

// Worker writes queued records to the durable sink.
type Worker struct {
	river.WorkerDefaults[RecordArgs]
	sink audit.Sink
	log  logrus.FieldLogger
}

func NewWorker(sink audit.Sink, log logrus.FieldLogger) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{sink: sink, log: log}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[RecordArgs]) error {
	if err := w.sink.Write(ctx, job.Args.Record); err != nil {
		w.log.WithError(err).WithFields(logrus.Fields{
			"job_id":     job.ID,
			"attempt":    job.Attempt,
			"request_id": job.Args.Record.RequestID,
		}).Warn("audit job failed")
		return err
	}
	return nil
}

// Inserter is the part of *river.Client the Enqueuer needs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Enqueuer is an audit.Sink that inserts a job instead of writing directly.
type Enqueuer struct {
	client Inserter
}

func NewEnqueuer(client Inserter) *Enqueuer { return &Enqueuer{client: client} }

func (e *Enqueuer) Write(ctx context.Context, rec audit.Record) error {
	if _, err := e.client.Insert(ctx, RecordArgs{Record: rec}, nil); err != nil {
		return fmt.Errorf("enqueue audit record: %w", err)
	}
	return nil
}

// NewClient builds a River client whose audit queue drains into sink.
// The caller starts and stops it.
func NewClient(pool *pgxpool.Pool, sink audit.Sink, workers int, log logrus.FieldLogger) (*river.Client[pgx.Tx], error) {
	if workers <= 0 {
		workers = 4
	}
	registry := river.NewWorkers()
	if err := river.AddWorkerSafely(registry, NewWorker(sink, log)); err != nil {
		return nil, fmt.Errorf("register audit worker: %w", err)
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  map[string]river.QueueConfig{QueueName: {MaxWorkers: workers}},
		Workers: registry,
	})
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	return client, nil
}

// Migrate installs or upgrades River's own tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}
	return nil
}
