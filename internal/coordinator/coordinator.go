// Package coordinator implements the static batch-distribution coordinator
// (C6 in SPEC_FULL.md): a single-threaded event loop serving job requests
// from scan workers and control commands from operator tooling, backed by
// an internal/filestate.Store. Grounded on clueweb_metadata_coordinator.py,
// re-expressed over internal/protocol instead of ZeroMQ REP sockets.
package coordinator

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/andrewramsay/clueweb-tools-go/internal/filestate"
	"github.com/andrewramsay/clueweb-tools-go/internal/protocol"
)

// Coordinator owns the file-state store and the two listeners workers and
// control tools talk to.
type Coordinator struct {
	Store          *filestate.Store
	JobsAddr       string
	ControlAddr    string
	Log            *zap.SugaredLogger
	acceptTimeout  time.Duration
	idleSleep      time.Duration
}

// New builds a Coordinator with the default poll cadence from spec §4.6:
// non-blocking accept on both listeners, falling back to a ~500ms sleep
// only when neither had a pending connection.
func New(store *filestate.Store, jobsAddr, controlAddr string, log *zap.SugaredLogger) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{
		Store:         store,
		JobsAddr:      jobsAddr,
		ControlAddr:   controlAddr,
		Log:           log,
		acceptTimeout: 20 * time.Millisecond,
		idleSleep:     500 * time.Millisecond,
	}
}

// Run drives the event loop until stop is closed.
func (c *Coordinator) Run(stop <-chan struct{}) error {
	jobsLn, err := net.Listen("tcp", c.JobsAddr)
	if err != nil {
		return fmt.Errorf("coordinator: listening on jobs address %s: %w", c.JobsAddr, err)
	}
	defer jobsLn.Close()

	ctrlLn, err := net.Listen("tcp", c.ControlAddr)
	if err != nil {
		return fmt.Errorf("coordinator: listening on control address %s: %w", c.ControlAddr, err)
	}
	defer ctrlLn.Close()

	c.Log.Infow("coordinator listening", "jobs", c.JobsAddr, "control", c.ControlAddr)

	for {
		select {
		case <-stop:
			c.Log.Infow("coordinator stopping")
			return nil
		default:
		}

		handled, exit, err := c.acceptAndHandle(jobsLn)
		if err != nil {
			c.Log.Warnw("jobs socket error", "error", err)
		}
		if !exit {
			ctrlHandled, ctrlExit, err := c.acceptAndHandle(ctrlLn)
			if err != nil {
				c.Log.Warnw("control socket error", "error", err)
			}
			handled = handled || ctrlHandled
			exit = ctrlExit
		}
		if exit {
			c.Log.Warnw("coordinator received exit command, stopping")
			return nil
		}
		if !handled {
			time.Sleep(c.idleSleep)
		}
	}
}

// acceptAndHandle performs one non-blocking Accept attempt on ln. Returns
// handled=false (not an error) when nothing was pending within
// acceptTimeout, and exit=true when the request was an EXIT control command.
func (c *Coordinator) acceptAndHandle(ln net.Listener) (handled bool, exit bool, err error) {
	tcpLn, ok := ln.(*net.TCPListener)
	if ok {
		tcpLn.SetDeadline(time.Now().Add(c.acceptTimeout))
	}
	conn, err := ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, false, nil
		}
		return false, false, err
	}
	defer conn.Close()

	req, err := protocol.ReadMessage(conn)
	if err != nil {
		return true, false, fmt.Errorf("reading request: %w", err)
	}
	reply, exit := c.handle(req)
	if err := protocol.WriteMessage(conn, reply); err != nil {
		return true, exit, fmt.Errorf("writing reply: %w", err)
	}
	return true, exit, nil
}

func (c *Coordinator) handle(req protocol.Message) (reply protocol.Message, exit bool) {
	switch req.Type {
	case protocol.NewJob:
		c.Log.Infow("received file request", "job", req.JobID, "count", req.WantFiles)
		batch, err := c.Store.GetNextBatch(req.JobID, req.WantFiles)
		if err != nil {
			c.Log.Warnw("get_next_batch failed", "job", req.JobID, "error", err)
		}
		c.Log.Infow("returning batch", "job", req.JobID, "files", len(batch.Paths))
		return protocol.Message{Type: protocol.Ack, BatchIDs: batch.IDs, BatchPaths: batch.Paths}, false

	case protocol.Finished:
		if req.Success {
			c.Log.Infow("job finished, marking batch complete", "job", req.JobID, "files", req.NumFiles)
			c.Store.CompleteBatch(req.JobID)
		} else {
			c.Log.Errorw("job reported failure", "job", req.JobID)
		}
		return protocol.Message{Type: protocol.Ack}, false

	case protocol.Exit:
		c.Log.Warnw("received exit command")
		return protocol.Message{Type: protocol.Ack}, true

	case protocol.ResetJob:
		ok := c.Store.ClearBatch(req.JobID)
		c.Log.Warnw("cleared job state", "job", req.JobID, "result", ok)
		return protocol.Message{Type: protocol.Ack}, false

	default:
		c.Log.Warnw("unknown message type", "type", req.Type)
		return protocol.Message{Type: protocol.Ack}, false
	}
}
