// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package ems

import "testing"

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"numeric", Value{Quantity: ActualTemp, Reading: Numeric(21.5), Valid: true}, "21.5"},
		{"numeric invalid", Value{Quantity: ActualTemp, Reading: Numeric(0), Valid: false}, "unavailable"},
		{"integer", Value{Quantity: BurnerStarts, Reading: Integer(4711), Valid: true}, "4711"},
		{"integer invalid", Value{Quantity: BurnerStarts, Reading: Integer(255), Valid: false}, "unavailable"},
		{"boolean on", Value{Quantity: FlameActive, Reading: Boolean(true), Valid: true}, "on"},
		{"boolean off", Value{Quantity: FlameActive, Reading: Boolean(false), Valid: true}, "off"},
		{"hk opmode", Value{Quantity: OpMode, Subsystem: SubHK1, Reading: Enum(2), Valid: true}, "auto"},
		{"ww opmode", Value{Quantity: OpMode, Subsystem: SubWW, Reading: Enum(1), Valid: true}, "eco"},
		{"unmapped enum", Value{Quantity: OpMode, Subsystem: SubHK1, Reading: Enum(9), Valid: true}, "9"},
		{"heating system", Value{Quantity: HeatingSystem, Subsystem: SubHK2, Reading: Enum(3), Valid: true}, "floorheater"},
		{"curve", Value{Quantity: HeatingCurve, Subsystem: SubHK1, Reading: Curve{60, 45, 30}, Valid: true}, "60/45/30"},
		{"formatted", Value{Quantity: ServiceCode, Reading: Formatted("0A"), Valid: true}, "0A"},
		{"date", Value{Quantity: ServiceDate, Reading: DateRecord{Day: 3, Month: 8, Year: 26}, Valid: true}, "2026-08-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.value); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatValue_ErrorEntry(t *testing.T) {
	entry := ErrorRecordEntry{
		LogType: 0x10,
		Index:   2,
		Record: ErrorRecord{
			Code:     [2]byte{'6', 'L'},
			Number:   229,
			Duration: 12,
			Source:   0x10,
		},
	}
	v := Value{Quantity: ErrorEntry, Reading: entry, Valid: true}
	if got := FormatValue(v); got != "L02 xxxx-xx-xx xx:xx 10 6L 229 12" {
		t.Errorf("got %q", got)
	}
}

func TestFormatValue_EmptyErrorEntry(t *testing.T) {
	entry := ErrorRecordEntry{LogType: 0x11, Index: 0}
	v := Value{Quantity: ErrorEntry, Reading: entry, Valid: true}
	if got := FormatValue(v); got != "B00 empty" {
		t.Errorf("got %q", got)
	}
}

func TestNames_CoverPublishedQuantities(t *testing.T) {
	// every quantity the decoder can emit has an API name
	for q := SetpointTemp; q <= FaultMessageNumber; q++ {
		if QuantityName(q) == "" {
			t.Errorf("quantity %d has no API name", q)
		}
	}
	if SubsystemName(SubNone) != "" {
		t.Error("SubNone must not have a name")
	}
	if SubsystemName(SubHK1) != "hk1" {
		t.Error("unexpected hk1 name")
	}
}
