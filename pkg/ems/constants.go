// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

// Package ems implements the Buderus/Bosch EMS and EMS-plus heating bus
// protocol: frame and link-layer codecs, the typed value model, and the
// table-driven message decoder.
//
// The package does no I/O. Transports hand it framed byte sequences and
// receive wire-ready byte sequences back; decoded values are delivered
// through callbacks.
package ems

// Bus peer addresses. Bit 7 of a destination byte is the
// "response expected" flag, not part of the address.
const (
	AddrUBA            = 0x08
	AddrBC10           = 0x09
	AddrRC3x           = 0x10
	AddrWM10           = 0x11
	AddrRC2xStandalone = 0x17
	AddrRC2xHK1        = 0x18
	AddrRC2xHK2        = 0x19
	AddrRC2xHK3        = 0x1A
	AddrRC2xHK4        = 0x1B
	AddrMM10HK1        = 0x21
	AddrMM10HK2        = 0x22
	AddrMM10HK3        = 0x23
	AddrMM10HK4        = 0x24
	AddrSM10           = 0x30
	AddrUBA2           = 0x88
	AddrPC             = 0x8B
	AddrUI800          = 0x90
	AddrRH800          = 0xB8
	AddrConnectKey     = 0xC8
)

// ResponseFlag is set on the destination byte of a read request.
const ResponseFlag = 0x80

// Message type ids below ExtendedTypeBase are classic one-byte EMS types.
// A wire type byte >= ExtendedTypeBase signals an EMS-plus frame whose
// 16-bit type follows the header; the wire type byte is then written as
// ExtendedTypeMarker so that classic and extended ids never collide.
const (
	ExtendedTypeBase   = 0xF0
	ExtendedTypeMarker = 0xFF
)

// DeviceAck is the type of the single-byte acknowledgement a peer sends
// after a write. Offset 0x04 in the ack means the write was rejected.
const (
	DeviceAck          = 0xFF
	DeviceAckRejOffset = 0x04
)

// Well-known message types referenced outside the decode table.
const (
	TypeVersion     = 0x02
	TypeSystemTime  = 0x06
	TypeErrorLog    = 0x12
	TypeTestmode    = 0x1D
	TypeWWParameter = 0x33
	TypeContactInfo = 0x0137
	TypeHKOpmode    = 0x01B9 // + (hk - 1)
	TypeHKSchedule  = 0x42   // + (hk - 1)
)

// Offsets within the per-circuit schedule message.
const (
	ScheduleEntryCount  = 42
	ScheduleBytes       = ScheduleEntryCount * 3
	HolidayRangeOffset  = 87
	VacationRangeOffset = 93
)

// WW system types reported in the warm water monitor message.
const (
	WWSystemNone          = 0
	WWSystemTankless      = 1
	WWSystemSmall         = 2
	WWSystemLarge         = 3
	WWSystemStorageCharge = 4
)

// Link-layer framing. A frame travels as SyncByte1 SyncByte2, a length
// byte, the frame data, and an XOR checksum over the data.
const (
	SyncByte1    = 0xAA
	SyncByte2    = 0x55
	MaxFrameSize = 255
)
