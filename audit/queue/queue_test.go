package auditqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/PaulFidika/meterkit/audit"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeInserter struct {
	args []river.JobArgs
	err  error
}

func (f *fakeInserter) Insert(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.args = append(f.args, args)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(f.args))}}, nil
}

type flakySink struct {
	audit.MemorySink
	fail bool
}

func (s *flakySink) Write(ctx context.Context, rec audit.Record) error {
	if s.fail {
		return errors.New("db down")
	}
	return s.MemorySink.Write(ctx, rec)
}

func TestRecordArgs(t *testing.T) {
	var a RecordArgs
	if a.Kind() != "audit_record" {
		t.Fatalf("unexpected kind %q", a.Kind())
	}
	if opts := a.InsertOpts(); opts.Queue != QueueName || opts.MaxAttempts != maxAttempts {
		t.Fatalf("unexpected insert opts: %+v", opts)
	}
}

func TestEnqueuer_InsertsJob(t *testing.T) {
	ins := &fakeInserter{}
	e := NewEnqueuer(ins)
	rec := audit.Record{RequestID: "r1", Action: audit.ActionAuthLogin}
	if err := e.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(ins.args) != 1 {
		t.Fatalf("expected one job, got %d", len(ins.args))
	}
	got, ok := ins.args[0].(RecordArgs)
	if !ok || got.Record.RequestID != "r1" {
		t.Fatalf("unexpected job args: %#v", ins.args[0])
	}

	ins.err = errors.New("queue full")
	if err := e.Write(context.Background(), rec); err == nil {
		t.Fatalf("expected insert error surfaced")
	}
}

func TestWorker_WritesToSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &flakySink{}
	w := NewWorker(sink, logger)
	job := &river.Job[RecordArgs]{
		JobRow: &rivertype.JobRow{ID: 7, Attempt: 1},
		Args:   RecordArgs{Record: audit.Record{RequestID: "r7", Actor: "alice@x"}},
	}
	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if recs := sink.Records(); len(recs) != 1 || recs[0].RequestID != "r7" {
		t.Fatalf("unexpected sink contents: %+v", recs)
	}

	sink.fail = true
	if err := w.Work(context.Background(), job); err == nil {
		t.Fatalf("expected error so River retries the job")
	}
	if len(hook.AllEntries()) != 1 {
		t.Fatalf("expected failure logged once, got %d", len(hook.AllEntries()))
	}
}
