package hardware_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

func TestMockResponder(t *testing.T) {
	m := hardware.NewMockWithResponder(func(cmd string) []string {
		if cmd == "!PING?" {
			return []string{"!PONG"}
		}
		return nil
	})

	if err := m.Write([]byte("!PING?\r!VOL?\r")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.Writes(); !slices.Equal(got, []string{"!PING?", "!VOL?"}) {
		t.Errorf("Writes() = %q", got)
	}
	if n := m.BytesWritten(); n != 13 {
		t.Errorf("BytesWritten() = %d, want 13", n)
	}
	b, err := m.ReadChunk(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if string(b) != "!PONG\r" {
		t.Errorf("ReadChunk = %q, want %q", b, "!PONG\r")
	}
}

func TestMockPartialWrite(t *testing.T) {
	m := hardware.NewMock()
	m.Write([]byte("!MUTE"))
	if len(m.Writes()) != 0 {
		t.Fatal("unterminated command recorded")
	}
	m.Write([]byte("ON\r"))
	if got := m.Writes(); !slices.Equal(got, []string{"!MUTEON"}) {
		t.Errorf("Writes() = %q", got)
	}
}

func TestMockEcho(t *testing.T) {
	m := hardware.NewMockWithResponder(func(string) []string { return []string{"!OK"} })
	m.SetEcho(true)
	m.Write([]byte("!VERB(1)\r"))

	var got []byte
	for range 2 {
		b, err := m.ReadChunk(100 * time.Millisecond)
		if err != nil {
			t.Fatalf("ReadChunk: %v", err)
		}
		got = append(got, b...)
	}
	if string(got) != "!VERB(1)\r!OK\r" {
		t.Errorf("read %q", got)
	}
}

func TestMockReadTimeout(t *testing.T) {
	m := hardware.NewMock()
	if _, err := m.ReadChunk(10 * time.Millisecond); !errors.Is(err, models.ErrTimeout) {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestMockFailRead(t *testing.T) {
	m := hardware.NewMock()
	m.FailRead(errors.New("unplugged"))
	if _, err := m.ReadChunk(time.Second); !errors.Is(err, models.ErrIO) {
		t.Errorf("err = %v, want io error", err)
	}
}

func TestMockFailWrite(t *testing.T) {
	m := hardware.NewMock()
	m.SetFailWrite(true)
	if err := m.Write([]byte("!OK\r")); !errors.Is(err, models.ErrIO) {
		t.Errorf("err = %v, want io error", err)
	}
	if m.BytesWritten() != 0 {
		t.Errorf("BytesWritten() = %d after failed write", m.BytesWritten())
	}
}

func TestMockClose(t *testing.T) {
	m := hardware.NewMock()
	done := make(chan error, 1)
	go func() {
		_, err := m.ReadChunk(5 * time.Second)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	m.Close()
	m.Close()

	select {
	case err := <-done:
		if !errors.Is(err, models.ErrIO) {
			t.Errorf("err = %v, want io error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock ReadChunk")
	}
	if !m.Closed() {
		t.Error("Closed() = false")
	}
	if err := m.Write([]byte("!OK\r")); err == nil {
		t.Error("Write after Close succeeded")
	}
}
