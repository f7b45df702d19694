// Package supervisor implements the dynamic local worker-pool supervisor
// (C7 in SPEC_FULL.md): a fixed pool of scan.Worker goroutines, each
// started paused, whose active/paused state is toggled by an external
// control connection while a single coupled acquire-lease-then-dispatch
// step in one goroutine keeps a paused worker from ever receiving a lease.
// Grounded on clueweb_metadata_scanner_dynamic.py.
package supervisor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
	"github.com/andrewramsay/clueweb-tools-go/internal/protocol"
	"github.com/andrewramsay/clueweb-tools-go/internal/scan"
)

const defaultJobID = "clueweb_metadata_scanner"

// Supervisor owns the worker pool and the control listener operators use
// to pause/resume individual workers.
type Supervisor struct {
	Store       *filestate.Store
	CoreCount   int
	OutputDir   string
	JobID       string
	ControlAddr string
	Log         *zap.SugaredLogger

	active []bool
	ins    []chan scan.Command
	out    chan scan.Result
	shards []*scan.Shard
}

// New builds a Supervisor with all workers starting paused.
func New(store *filestate.Store, coreCount int, outputDir, controlAddr string, log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Supervisor{
		Store:       store,
		CoreCount:   coreCount,
		OutputDir:   outputDir,
		JobID:       defaultJobID,
		ControlAddr: controlAddr,
		Log:         log,
		active:      make([]bool, coreCount),
	}
}

func (s *Supervisor) numActive() int {
	n := 0
	for _, a := range s.active {
		if a {
			n++
		}
	}
	return n
}

// Run starts the worker pool and the control listener, and drives the
// dispatch loop until every worker has been sent Stop and exits, or stop is
// closed.
func (s *Supervisor) Run(stop <-chan struct{}) error {
	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return fmt.Errorf("supervisor: creating output directory: %w", err)
	}

	ln, err := net.Listen("tcp", s.ControlAddr)
	if err != nil {
		return fmt.Errorf("supervisor: listening on control address %s: %w", s.ControlAddr, err)
	}
	defer ln.Close()

	s.out = make(chan scan.Result, s.CoreCount*2)
	s.ins = make([]chan scan.Command, s.CoreCount)
	s.shards = make([]*scan.Shard, s.CoreCount)

	for i := 0; i < s.CoreCount; i++ {
		shardPath := filepath.Join(s.OutputDir, fmt.Sprintf("%s-worker%d.csv", s.JobID, i))
		shard, err := scan.CreateShard(shardPath)
		if err != nil {
			return fmt.Errorf("supervisor: creating shard for worker %d: %w", i, err)
		}
		s.shards[i] = shard
		s.ins[i] = make(chan scan.Command, 1)

		w := &scan.Worker{Index: i, In: s.ins[i], Out: s.out, Shard: shard, Log: s.Log}
		go w.Run()
	}

	s.Log.Infow("supervisor started", "workers", s.CoreCount, "output", s.OutputDir)

	finished := make(map[int]bool)
	for len(finished) < s.CoreCount {
		select {
		case <-stop:
			s.Log.Infow("supervisor stopping")
			s.closeShards()
			return nil
		default:
		}

		s.acceptControl(ln)

		select {
		case res := <-s.out:
			s.handleResult(res, finished)
		case <-time.After(100 * time.Millisecond):
		}
	}

	s.Log.Infow("all workers finished")
	s.closeShards()
	return nil
}

func (s *Supervisor) closeShards() {
	for _, sh := range s.shards {
		if sh != nil {
			sh.Close()
		}
	}
}

func (s *Supervisor) acceptControl(ln net.Listener) {
	tcpLn, ok := ln.(*net.TCPListener)
	if ok {
		tcpLn.SetDeadline(time.Now().Add(10 * time.Millisecond))
	}
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	req, err := protocol.ReadMessage(conn)
	if err != nil {
		s.Log.Warnw("control connection read failed", "error", err)
		return
	}

	switch req.Type {
	case protocol.ResumeWorker:
		s.resumeWorker(req.WorkerIndex)
	case protocol.PauseWorker:
		s.pauseWorker(req.WorkerIndex)
	default:
		s.Log.Warnw("unknown control message", "type", req.Type)
	}
	protocol.WriteMessage(conn, protocol.Message{Type: protocol.Ack})
}

func (s *Supervisor) resumeWorker(i int) {
	if i < 0 || i >= s.CoreCount {
		s.Log.Errorw("invalid worker index", "worker", i)
		return
	}
	s.active[i] = true
	s.Log.Infow("resuming worker", "worker", i, "active_count", s.numActive())
	s.dispatchNext(i)
}

func (s *Supervisor) pauseWorker(i int) {
	if i < 0 || i >= s.CoreCount {
		s.Log.Errorw("invalid worker index", "worker", i)
		return
	}
	s.active[i] = false
	s.Log.Infow("pausing worker", "worker", i, "active_count", s.numActive())
}

// dispatchNext performs the acquire-lease-then-dispatch coupling: exactly
// one GetNextBatch(1) call and exactly one send on the worker's command
// channel per call. Each Result triggers at most one further dispatch, so a
// worker holds one lease at a time, except that a RESUME for a worker that
// still has a file in flight leases it a second file.
func (s *Supervisor) dispatchNext(i int) {
	jobID := fmt.Sprintf("%s-worker%d", s.JobID, i)
	batch, err := s.Store.GetNextBatch(jobID, 1)
	if err != nil {
		s.Log.Warnw("get_next_batch failed", "worker", i, "error", err)
	}
	if len(batch.Paths) == 0 {
		s.Log.Infow("worker requested a file but none remain", "worker", i)
		s.ins[i] <- scan.Command{Kind: scan.Stop}
		return
	}
	s.ins[i] <- scan.Command{Kind: scan.Assign, Path: batch.Paths[0]}
}

func (s *Supervisor) handleResult(res scan.Result, finished map[int]bool) {
	switch {
	case res.Stopped:
		finished[res.WorkerIndex] = true
		s.Log.Infow("worker finished", "worker", res.WorkerIndex, "finished_count", len(finished))
	case res.Err != nil:
		s.Log.Errorw("worker scan failed", "worker", res.WorkerIndex, "error", res.Err)
		s.requestNext(res.WorkerIndex)
	default:
		s.Log.Infow("worker scanned file", "worker", res.WorkerIndex, "records", res.Records)
		if res.Path != "" {
			s.Store.CompleteBatchFiles([]string{res.Path})
		}
		s.requestNext(res.WorkerIndex)
	}
}

// requestNext mirrors send_file_to_worker's post-scan branch: a paused
// worker is left blocked on its channel (no Command sent) instead of being
// woken with one it would have to discard, matching the original's
// MSG_PAUSE reply.
func (s *Supervisor) requestNext(i int) {
	if !s.active[i] {
		s.Log.Infow("worker is requesting a file, but has been paused", "worker", i)
		return
	}
	s.dispatchNext(i)
}
