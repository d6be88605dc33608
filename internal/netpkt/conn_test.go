package netpkt

import (
	"testing"
	"time"

	rerrors "github.com/devraj-patil/reliudp/internal/errors"
)

func TestListenDialRoundTrip(t *testing.T) {
	rx, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer rx.Close()

	tx, err := Dial(rx.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tx.Close()

	if err := tx.WriteTo([]byte("hello"), nil); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	if err := rx.SetDeadline(2 * time.Second); err != nil {
		t.Fatalf("SetDeadline: %v", err)
	}
	buf := make([]byte, 64)
	n, _, err := rx.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("unexpected payload: %q", buf[:n])
	}
}

func TestReadFromDeadlineExpiryClassifiesAsTimeout(t *testing.T) {
	rx, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer rx.Close()

	if err := rx.SetDeadline(50 * time.Millisecond); err != nil {
		t.Fatalf("SetDeadline: %v", err)
	}
	buf := make([]byte, 64)
	_, _, err = rx.ReadFrom(buf)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !rerrors.IsTimeout(err) {
		t.Fatalf("expected IsTimeout(err) to be true, got %v", err)
	}
}

func TestBindFailedOnInvalidAddress(t *testing.T) {
	if _, err := Listen("not-an-address"); err == nil {
		t.Fatalf("expected bind failure on invalid address")
	}
	if _, err := Dial("not-an-address"); err == nil {
		t.Fatalf("expected dial failure on invalid address")
	}
}
