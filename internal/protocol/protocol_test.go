package protocol

import (
	"net"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := Message{
		Type:       NewJob,
		JobID:      "worker-7",
		WantFiles:  5,
		BatchIDs:   []int64{1, 2, 3},
		BatchPaths: []string{"a.json.gz", "b.json.gz", "c.json.gz"},
	}

	done := make(chan error, 1)
	go func() {
		done <- WriteMessage(client, want)
	}()

	got, err := ReadMessage(server)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	if got.Type != want.Type || got.JobID != want.JobID || got.WantFiles != want.WantFiles {
		t.Errorf("ReadMessage = %+v, want %+v", got, want)
	}
	if len(got.BatchPaths) != len(want.BatchPaths) {
		t.Fatalf("BatchPaths length = %d, want %d", len(got.BatchPaths), len(want.BatchPaths))
	}
	for i := range want.BatchPaths {
		if got.BatchPaths[i] != want.BatchPaths[i] {
			t.Errorf("BatchPaths[%d] = %q, want %q", i, got.BatchPaths[i], want.BatchPaths[i])
		}
	}
}

func TestReadMessageRejectsOversized(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		// length prefix claiming far more than maxMessageBytes
		client.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}()

	if _, err := ReadMessage(server); err == nil {
		t.Error("ReadMessage: expected error for oversized length prefix")
	}
}
