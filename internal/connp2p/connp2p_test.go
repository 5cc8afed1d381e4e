package connp2p

import (
	"testing"
	"time"
)

func TestPutCopiesData(t *testing.T) {
	local := []byte("hello, world!!!!")
	remote := make([]byte, len(local))
	c := New(local, remote)
	defer c.Close()

	if err := c.Put(0, 0, uint32(len(local))); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if string(remote) != string(local) {
		t.Fatalf("remote = %q, want %q", remote, local)
	}
}

func TestFlushWaitsForAllPuts(t *testing.T) {
	local := make([]byte, 64)
	for i := range local {
		local[i] = byte(i)
	}
	remote := make([]byte, 64)
	c := New(local, remote)
	defer c.Close()

	for i := 0; i < 8; i++ {
		if err := c.Put(uint32(i*8), uint32(i*8), 8); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	for i := range remote {
		if remote[i] != local[i] {
			t.Fatalf("remote[%d] = %d, want %d", i, remote[i], local[i])
		}
	}
}

func TestPutOutOfRangeErrors(t *testing.T) {
	local := make([]byte, 4)
	remote := make([]byte, 4)
	c := New(local, remote)
	defer c.Close()

	if err := c.Put(0, 0, 16); err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestSignalDoesNotBlock(t *testing.T) {
	c := New(make([]byte, 1), make([]byte, 1))
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- c.Signal() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Signal should not block")
	}
}

func TestOperationsFailAfterClose(t *testing.T) {
	c := New(make([]byte, 1), make([]byte, 1))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(0, 0, 1); err != ErrConnectionClosed {
		t.Fatalf("Put after close = %v, want ErrConnectionClosed", err)
	}
	if err := c.Signal(); err != ErrConnectionClosed {
		t.Fatalf("Signal after close = %v, want ErrConnectionClosed", err)
	}
	if err := c.Flush(); err != ErrConnectionClosed {
		t.Fatalf("Flush after close = %v, want ErrConnectionClosed", err)
	}
}
