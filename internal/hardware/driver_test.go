package hardware_test

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		in   string
		want hardware.Descriptor
	}{
		{"/dev/ttyUSB0", hardware.Descriptor{Kind: hardware.KindSerial, Address: "/dev/ttyUSB0", BaudRate: 115200, Timeout: 2 * time.Second}},
		{"serial:///dev/ttyUSB1", hardware.Descriptor{Kind: hardware.KindSerial, Address: "/dev/ttyUSB1", BaudRate: 115200, Timeout: 2 * time.Second}},
		{"socket://192.168.1.100:84", hardware.Descriptor{Kind: hardware.KindSocket, Address: "192.168.1.100:84", BaudRate: 115200, Timeout: 2 * time.Second}},
		{"socket://lyngdorf.local", hardware.Descriptor{Kind: hardware.KindSocket, Address: "lyngdorf.local:84", BaudRate: 115200, Timeout: 2 * time.Second}},
		{"tcp://10.0.0.5:2000", hardware.Descriptor{Kind: hardware.KindSocket, Address: "10.0.0.5:2000", BaudRate: 115200, Timeout: 2 * time.Second}},
	}
	for _, tt := range tests {
		got, err := hardware.ParseURL(tt.in)
		if err != nil {
			t.Errorf("ParseURL(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseURL(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseURLErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "http://example.com", "socket://", "serial://"} {
		if _, err := hardware.ParseURL(in); err == nil {
			t.Errorf("ParseURL(%q) succeeded, want error", in)
		}
	}
}

func TestDescriptorString(t *testing.T) {
	d, _ := hardware.ParseURL("/dev/ttyS0")
	if got := d.String(); got != "serial:///dev/ttyS0@115200" {
		t.Errorf("String() = %q", got)
	}
	d, _ = hardware.ParseURL("socket://mp60")
	if got := d.String(); got != "socket://mp60:84" {
		t.Errorf("String() = %q", got)
	}
	if got := (hardware.Descriptor{Address: "conn:MP-60"}).String(); got != "conn:MP-60" {
		t.Errorf("String() without kind = %q, want conn:MP-60", got)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := hardware.Open(hardware.Descriptor{Kind: "carrier-pigeon", Address: "x"})
	if !errors.Is(err, models.ErrConnect) {
		t.Errorf("err = %v, want connect error", err)
	}
}

func TestSocketConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback listener: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		line, err := bufio.NewReader(c).ReadString('\r')
		if err != nil {
			return
		}
		received <- strings.TrimSuffix(line, "\r")
		c.Write([]byte("!PONG\r"))
		time.Sleep(200 * time.Millisecond)
	}()

	conn, err := hardware.Open(hardware.Descriptor{Kind: hardware.KindSocket, Address: ln.Addr().String()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	if err := conn.Write([]byte("!PING?\r")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case got := <-received:
		if got != "!PING?" {
			t.Errorf("server received %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("server received nothing")
	}

	var buf []byte
	deadline := time.Now().Add(time.Second)
	for !strings.Contains(string(buf), "\r") && time.Now().Before(deadline) {
		b, err := conn.ReadChunk(100 * time.Millisecond)
		if err != nil && !errors.Is(err, models.ErrTimeout) {
			t.Fatalf("ReadChunk: %v", err)
		}
		buf = append(buf, b...)
	}
	if string(buf) != "!PONG\r" {
		t.Errorf("read %q, want %q", buf, "!PONG\r")
	}

	if _, err := conn.ReadChunk(20 * time.Millisecond); !errors.Is(err, models.ErrTimeout) {
		t.Errorf("idle ReadChunk err = %v, want timeout", err)
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := conn.ReadChunk(20 * time.Millisecond); !errors.Is(err, models.ErrIO) {
		t.Errorf("ReadChunk after Close err = %v, want io error", err)
	}
}

func TestSocketConnRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback listener: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = hardware.Open(hardware.Descriptor{Kind: hardware.KindSocket, Address: addr, Timeout: 500 * time.Millisecond})
	if !errors.Is(err, models.ErrConnect) {
		t.Errorf("err = %v, want connect error", err)
	}
}

func TestSerialOpenMissingDevice(t *testing.T) {
	_, err := hardware.Open(hardware.Descriptor{Kind: hardware.KindSerial, Address: "/dev/does-not-exist-lyngdorf"})
	if !errors.Is(err, models.ErrConnect) {
		t.Errorf("err = %v, want connect error", err)
	}
}
