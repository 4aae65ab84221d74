// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package ems

import (
	"bytes"
	"testing"
)

func TestDecodeFrame_TooShort(t *testing.T) {
	for _, buf := range [][]byte{nil, {0x08}, {0x08, 0x0B}, {0x08, 0x0B, 0x18}} {
		if _, err := DecodeFrame(buf); err != ErrShortFrame {
			t.Errorf("DecodeFrame(%v): expected ErrShortFrame, got %v", buf, err)
		}
	}
}

func TestDecodeFrame_Classic(t *testing.T) {
	buf := []byte{0x08, 0x0B, 0x18, 0x04, 0x50, 0x02, 0x01}
	f, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if f.Source != 0x08 || f.Dest != 0x0B || f.Type != 0x18 || f.Offset != 4 {
		t.Errorf("unexpected header: %+v", f)
	}
	if !bytes.Equal(f.Data, []byte{0x50, 0x02, 0x01}) {
		t.Errorf("unexpected data: %v", f.Data)
	}
	if f.IsExtended() {
		t.Error("classic frame reported as extended")
	}
}

func TestDecodeFrame_ExtendedWrite(t *testing.T) {
	// write: type bytes directly after the header
	buf := []byte{AddrPC, 0x10, 0xFF, 22, 0x01, 0xB9, 42}
	f, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if f.Type != 0x01B9 {
		t.Errorf("expected type 0x01B9, got 0x%04X", f.Type)
	}
	if !bytes.Equal(f.Data, []byte{42}) {
		t.Errorf("unexpected data: %v", f.Data)
	}
}

func TestDecodeFrame_ExtendedRead(t *testing.T) {
	// read request: length byte precedes the type bytes
	buf := []byte{AddrPC, 0x90, 0xFF, 22, 10, 0x01, 0xB9}
	f, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if f.Type != 0x01B9 {
		t.Errorf("expected type 0x01B9, got 0x%04X", f.Type)
	}
	if !f.ExpectsResponse() {
		t.Error("read request should expect a response")
	}
	if !bytes.Equal(f.Data, []byte{10}) {
		t.Errorf("unexpected data: %v", f.Data)
	}
}

func TestDecodeFrame_AckStaysClassic(t *testing.T) {
	// a short device ack has the 0xFF type byte but no extended type
	buf := []byte{0x90, 0x0B, 0xFF, 0x01, 0x00}
	f, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if f.Type != DeviceAck {
		t.Errorf("expected ack type 0xFF, got 0x%04X", f.Type)
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"classic write", []byte{AddrPC, 0x10, 0x42, 0x06, 2, 39, 1}},
		{"classic read", []byte{AddrPC, 0x90, 0x12, 0x00, 48}},
		{"extended write", []byte{AddrPC, 0x10, 0xFF, 22, 0x01, 0xB9, 42}},
		{"extended read", []byte{AddrPC, 0x90, 0xFF, 0, 120, 0x01, 0x37}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame(tt.buf)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			out := f.SendData(false)
			if !bytes.Equal(out, tt.buf) {
				t.Errorf("round trip mismatch:\n got %v\nwant %v", out, tt.buf)
			}
		})
	}
}

func TestFrame_SendDataOmitSender(t *testing.T) {
	f := NewRequest(AddrUBA2, TypeVersion, 0, []byte{3}, true)
	withSender := f.SendData(false)
	withoutSender := f.SendData(true)
	if withSender[0] != AddrPC {
		t.Errorf("expected leading sender address, got 0x%02x", withSender[0])
	}
	if !bytes.Equal(withSender[1:], withoutSender) {
		t.Error("omitting the sender should only drop the first byte")
	}
}

func TestNewRequest_ResponseFlag(t *testing.T) {
	read := NewRequest(AddrUBA2, TypeVersion, 0, []byte{3}, true)
	if read.Dest != AddrUBA2 {
		t.Errorf("read dest: expected 0x%02x, got 0x%02x", AddrUBA2, read.Dest)
	}
	write := NewRequest(AddrUBA2, TypeTestmode, 0, []byte{0x5A}, false)
	if write.Dest != AddrUBA2&^ResponseFlag {
		t.Errorf("write dest: expected 0x%02x, got 0x%02x", AddrUBA2&^ResponseFlag, write.Dest)
	}
}

func TestLinkDecoder_RoundTrip(t *testing.T) {
	payload := []byte{0x08, 0x0B, 0x18, 0x00, 0x32, 0x02, 0x01}
	wire := EncodeLink(payload)

	d := NewLinkDecoder()
	// leading garbage must not disturb synchronisation
	stream := append([]byte{0x12, SyncByte1, 0x99}, wire...)

	var got []byte
	for _, b := range stream {
		frame, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if frame != nil {
			got = frame
		}
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("link round trip mismatch: got %v, want %v", got, payload)
	}
}

func TestLinkDecoder_ChecksumMismatch(t *testing.T) {
	payload := []byte{0x08, 0x0B, 0x18, 0x00}
	wire := EncodeLink(payload)
	wire[len(wire)-1] ^= 0xFF

	d := NewLinkDecoder()
	var gotErr error
	for _, b := range wire {
		frame, err := d.DecodeByte(b)
		if err != nil {
			gotErr = err
		}
		if frame != nil {
			t.Error("corrupted frame must not decode")
		}
	}
	if gotErr == nil {
		t.Error("expected checksum error")
	}
}
