package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/process"

	"github.com/bootlin/elixir/internal/logx"
)

// rssWarnThreshold is the resident-set-size level above which a stage's
// progress line escalates from Info to Warn — a rebuild of
// the DefsCache buckets or a large Refs pass is the likeliest thing to push
// memory this high.
const rssWarnThreshold = 2 * datasize.GB

// ProgressLogger periodically reports RSS/CPU usage and a caller-supplied
// item counter while a long-running stage executes — the update
// pipeline's analogue of the teacher's 30s logEvery ticker pattern (see
// eth/stagedsync/stage_log_index.go's logIndicesCheckSizeEvery), enriched
// with process-level sampling via gopsutil since the indexing run is a
// single long-lived OS process rather than a block-range loop.
type ProgressLogger struct {
	label string
	log   *logx.Logger
	proc  *process.Process
	stop  chan struct{}
	done  chan struct{}
}

// NewProgressLogger starts sampling immediately; call Stop when the
// stage finishes. count is read under no particular synchronization
// discipline beyond whatever the caller already uses for it — an
// occasional stale read in a progress line is harmless.
func NewProgressLogger(label string, every time.Duration, count func() int) *ProgressLogger {
	p := &ProgressLogger{
		label: label,
		log:   logx.With("component", "pipeline.progress", "stage", label),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		p.proc = proc
	}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.sample(count())
			}
		}
	}()
	return p
}

func (p *ProgressLogger) sample(count int) {
	fields := []interface{}{"count", count}
	var rssBytes datasize.ByteSize
	if p.proc != nil {
		if rss, err := p.proc.MemoryInfo(); err == nil && rss != nil {
			rssBytes = datasize.ByteSize(rss.RSS)
			fields = append(fields, "rss", rssBytes.HumanReadable())
		}
		if cpuPct, err := p.proc.CPUPercent(); err == nil {
			fields = append(fields, "cpuPercent", cpuPct)
		}
	}
	if rssBytes >= rssWarnThreshold {
		p.log.Warn("progress", fields...)
		return
	}
	p.log.Info("progress", fields...)
}

// Stop halts sampling and waits for the background goroutine to exit.
func (p *ProgressLogger) Stop() {
	close(p.stop)
	<-p.done
}

// stopped reports ctx cancellation the way the teacher's common.Stopped
// helper checks a quit channel inside tight stage loops.
func stopped(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
