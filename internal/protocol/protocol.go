// Package protocol implements the coordinator/worker wire format: a
// length-prefixed, gob-encoded request/reply exchange over plain TCP
// connections. No messaging middleware (ZeroMQ, NATS, AMQP) appears
// anywhere in the example corpus this module was grounded on, so the
// standard library's net + encoding/gob stand in for it, exactly as
// SPEC_FULL.md's design notes permit: "a length-prefixed encoding over
// reliable stream sockets is sufficient."
//
// Each request opens a fresh connection, writes one Message, reads one
// Message reply, and closes — the closest stdlib equivalent of a REQ/REP
// socket's strict one-shot request/reply framing.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"time"
)

// Type enumerates the coordinator/worker message kinds from SPEC_FULL.md's C6/C7 sections.
type Type string

const (
	NewJob        Type = "NEWJOB"
	Finished      Type = "FINISHED"
	Ack           Type = "ACK"
	PauseWorker   Type = "PAUSE_WORKER"
	ResumeWorker  Type = "RESUME_WORKER"
	Exit          Type = "EXIT"
	ResetJob      Type = "RESET_JOB"
)

// Message is the envelope exchanged over both the jobs and control sockets.
type Message struct {
	Type Type

	// NEWJOB request / reply
	JobID      string
	WantFiles  int
	BatchIDs   []int64
	BatchPaths []string

	// FINISHED request
	NumFiles int
	Success  bool

	// PAUSE_WORKER / RESUME_WORKER
	WorkerIndex int
}

const maxMessageBytes = 64 << 20 // 64MiB guards against a corrupt length prefix

// WriteMessage gob-encodes msg and writes it to w prefixed with its length
// as a big-endian uint32.
func WriteMessage(w io.Writer, msg Message) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return fmt.Errorf("protocol: encoding message: %w", err)
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("protocol: writing length prefix: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("protocol: writing message body: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed gob-encoded Message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Message{}, fmt.Errorf("protocol: reading length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxMessageBytes {
		return Message{}, fmt.Errorf("protocol: message too large (%d bytes)", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("protocol: reading message body: %w", err)
	}
	var msg Message
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("protocol: decoding message: %w", err)
	}
	return msg, nil
}

// Request dials addr, sends req, reads and returns the reply, then closes
// the connection. Used by workers and ctrl tools talking to the coordinator
// or supervisor.
func Request(addr string, req Message, timeout time.Duration) (Message, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return Message{}, fmt.Errorf("protocol: dialing %s: %w", addr, err)
	}
	defer conn.Close()
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}

	bw := bufio.NewWriter(conn)
	if err := WriteMessage(bw, req); err != nil {
		return Message{}, err
	}
	if err := bw.Flush(); err != nil {
		return Message{}, fmt.Errorf("protocol: flushing request: %w", err)
	}
	return ReadMessage(bufio.NewReader(conn))
}
