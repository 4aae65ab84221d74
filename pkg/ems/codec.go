// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package ems

import "fmt"

// RCType selects the room controller generation; a few heating circuit
// parameter layouts differ between the two.
type RCType int

const (
	RCUnknown RCType = iota
	RC30
	RC35
)

// Decoder turns frames into typed values. Dispatch is table-driven on
// (source, type); unknown combinations decode successfully but produce
// no values.
//
// Cache is consulted for exactly one cross-message dependency: the
// heating-system type of a circuit decides the byte positions of the
// maximum-flow and design temperatures in the opmode message.
type Decoder struct {
	Values ValueFunc
	Cache  CacheFunc
	RCType RCType
}

type dispatchKey struct {
	source byte
	typ    uint16
}

// msg is the per-frame decode context. Extractors check their field
// window against [Offset, Offset+len(Data)) and silently skip fields a
// paginated response does not cover.
type msg struct {
	d *Decoder
	f Frame
}

var dispatchTable = map[dispatchKey]func(*msg){}

func register(source byte, typ uint16, fn func(*msg)) {
	dispatchTable[dispatchKey{source, typ}] = fn
}

func init() {
	register(AddrUBA2, 0xD1, (*msg).parseUBA2Outdoor)
	register(AddrUBA2, 0xE4, (*msg).parseUBA2Monitor)
	register(AddrUBA2, 0xE5, (*msg).parseUBA2Monitor2)
	register(AddrUBA2, 0xE9, (*msg).parseUBA2WWMonitor)
	register(AddrUBA2, 0xBF, (*msg).parseFaultMessage)

	register(AddrUI800, TypeSystemTime, (*msg).parseSystemTime)
	register(AddrUI800, 0xBF, (*msg).parseFaultMessage)

	register(AddrUBA, 0x10, (*msg).parseErrorLog)
	register(AddrUBA, 0x11, (*msg).parseErrorLog)
	register(AddrUBA, 0x14, (*msg).parseUBATotalUptime)
	register(AddrUBA, 0x15, (*msg).parseUBAMaintenanceSettings)
	register(AddrUBA, 0x16, (*msg).parseUBAParameters)
	register(AddrUBA, 0x18, (*msg).parseUBAMonitorFast)
	register(AddrUBA, 0x19, (*msg).parseUBAMonitorSlow)
	register(AddrUBA, 0x1C, (*msg).parseUBAMaintenanceStatus)
	register(AddrUBA, TypeWWParameter, (*msg).parseUBAParameterWW)
	register(AddrUBA, 0x34, (*msg).parseUBAMonitorWW)

	register(AddrRC3x, TypeSystemTime, (*msg).parseSystemTime)
	register(AddrRC3x, 0x37, (*msg).parseRCWWOpmode)
	register(AddrRC3x, 0xA3, (*msg).parseRCOutdoorTemp)
	register(AddrRC3x, 0xA5, (*msg).parseRCSystemParameters)
	for hk := 0; hk < 4; hk++ {
		sub := SubHK1 + Subsystem(hk)
		base := uint16(0x3D + 0x0A*hk)
		register(AddrRC3x, base, hkParser(sub, (*msg).parseRCHKOpmode))
		register(AddrRC3x, base+1, hkParser(sub, (*msg).parseRCHKMonitor))
		register(AddrRC3x, base+2, hkParser(sub, (*msg).parseRCHKSchedule))
	}

	for _, src := range []byte{AddrRC2xStandalone, AddrRC2xHK1, AddrRC2xHK2, AddrRC2xHK3, AddrRC2xHK4} {
		register(src, 0xAE, (*msg).parseRC20Status)
	}

	register(AddrWM10, 0x9C, (*msg).parseWMTemp1)
	register(AddrWM10, 0x1E, (*msg).parseWMTemp2)

	for _, src := range []byte{AddrMM10HK1, AddrMM10HK2, AddrMM10HK3, AddrMM10HK4} {
		register(src, 0xAB, (*msg).parseMMTemp)
	}

	register(AddrSM10, 0x97, (*msg).parseSolarMonitor)
}

func hkParser(sub Subsystem, fn func(*msg, Subsystem)) func(*msg) {
	return func(m *msg) { fn(m, sub) }
}

// Handle decodes one frame. It reports whether the (source, type) pair
// was known to the dispatch table.
func (d *Decoder) Handle(f Frame) bool {
	if d.Values == nil {
		return false
	}
	if f.Source == 0 && f.Dest == 0 && f.Type == 0 {
		return false
	}
	fn, ok := dispatchTable[dispatchKey{f.Source, f.Type}]
	if !ok {
		return false
	}
	fn(&msg{d: d, f: f})
	return true
}

func (m *msg) emit(v Value) {
	m.d.Values(v)
}

// canAccess reports whether the field window [off, off+size) lies
// within the frame payload.
func (m *msg) canAccess(off, size int) bool {
	return off >= int(m.f.Offset) && off+size <= int(m.f.Offset)+len(m.f.Data)
}

// at returns the payload slice for absolute message offset off.
func (m *msg) at(off, size int) []byte {
	start := off - int(m.f.Offset)
	return m.f.Data[start : start+size]
}

func (m *msg) numeric(off, size, divider int, q Quantity, s Subsystem) {
	m.numericOpts(off, size, divider, q, s, true, nil)
}

func (m *msg) numericUnsigned(off, size, divider int, q Quantity, s Subsystem) {
	m.numericOpts(off, size, divider, q, s, false, nil)
}

func (m *msg) numericOpts(off, size, divider int, q Quantity, s Subsystem,
	signed bool, invalid [][]byte) {
	if m.canAccess(off, size) {
		m.emit(newNumericValue(q, s, m.at(off, size), divider, signed, invalid))
	}
}

func (m *msg) integer(off, size int, q Quantity, s Subsystem) {
	m.numericOpts(off, size, 0, q, s, false, nil)
}

func (m *msg) temperature(off int, q Quantity, s Subsystem) {
	m.numericOpts(off, 2, 10, q, s, true, invalidTemperatures)
}

func (m *msg) boolean(off int, bit uint, q Quantity, s Subsystem) {
	if m.canAccess(off, 1) {
		m.emit(newBoolValue(q, s, m.at(off, 1)[0], bit))
	}
}

func (m *msg) enumeration(off int, q Quantity, s Subsystem) {
	if m.canAccess(off, 1) {
		m.emit(newEnumValue(q, s, m.at(off, 1)[0]))
	}
}

func (m *msg) formatted(q Quantity, s Subsystem, text string) {
	m.emit(Value{Quantity: q, Subsystem: s, Reading: Formatted(text), Valid: true})
}

func (m *msg) parseUBA2Outdoor() {
	m.temperature(0, ActualTemp, SubOutdoor)
}

func (m *msg) parseUBA2Monitor() {
	m.numeric(6, 1, 1, SetpointTemp, SubBoiler)
	m.temperature(7, ActualTemp, SubBoiler)
	m.temperature(13, ActualTemp, SubHeatExchanger)
	m.temperature(17, ActualTemp, SubReturnLine)
	m.numeric(19, 2, 10, FlameCurrent, SubNone)
	m.numericUnsigned(21, 1, 10, SystemPressure, SubNone)
	m.integer(40, 1, ActualModulation, SubBurner)
	m.integer(41, 1, SetpointModulation, SubBurner)

	if m.canAccess(4, 2) {
		raw := m.at(4, 2)
		m.formatted(FaultCode, SubNone, fmt.Sprintf("%d", int(raw[0])<<8|int(raw[1])))
		m.formatted(ServiceCode, SubNone, "--")
	}
	if m.canAccess(19, 2) {
		raw := m.at(19, 2)
		burning := byte(0)
		if int(raw[0])<<8|int(raw[1]) > 0 {
			burning = 1
		}
		m.emit(newBoolValue(FlameActive, SubNone, burning, 0))
	}
}

func (m *msg) parseUBA2Monitor2() {
	m.integer(25, 1, ActualModulation, SubBoilerPump)
	m.boolean(26, 5, ThreeWayValveOnWW, SubNone)
	m.boolean(2, 7, CirculationActive, SubNone)
}

func (m *msg) parseUBA2WWMonitor() {
	m.numeric(0, 1, 1, SetpointTemp, SubWW)
	m.temperature(1, ActualTemp, SubWW)
}

// parseFaultMessage handles the UBA2/UI800 fault broadcast: up to three
// seven-byte slots of a three-character code and a 16-bit number. With
// no slot occupied it reports the all-clear pair.
func (m *msg) parseFaultMessage() {
	found := false
	for i := 0; i < 3; i++ {
		if m.canAccess(5+i*7, 3) {
			raw := m.at(5+i*7, 3)
			if raw[0]|raw[1]|raw[2] > 0 {
				m.formatted(FaultMessageCode, SubNone,
					fmt.Sprintf("%c%c%c", raw[0], raw[1], raw[2]))
				found = true
			}
		}
		if m.canAccess(8+i*7, 2) {
			raw := m.at(8+i*7, 2)
			if raw[0]|raw[1] > 0 {
				m.formatted(FaultMessageNumber, SubNone,
					fmt.Sprintf("%d", int(raw[0])<<8|int(raw[1])))
				found = true
			}
		}
	}
	if !found {
		m.formatted(FaultMessageCode, SubNone, "OK")
		m.formatted(FaultMessageNumber, SubNone, "0")
	}
}

func (m *msg) parseUBATotalUptime() {
	m.integer(0, 3, OperatingMinutes, SubNone)
}

func (m *msg) parseUBAMaintenanceSettings() {
	m.enumeration(0, MaintenanceReminder, SubBoiler)
	m.integer(1, 1, HectoHoursBeforeService, SubBoiler)
	if m.canAccess(2, 3) {
		record, err := DecodeDateRecord(m.at(2, 3))
		if err == nil {
			m.emit(Value{Quantity: ServiceDate, Subsystem: SubBoiler,
				Reading: record, Valid: true})
		}
	}
}

func (m *msg) parseUBAMaintenanceStatus() {
	m.enumeration(5, MaintenanceDue, SubBoiler)
}

func (m *msg) parseUBAParameters() {
	m.boolean(0, 1, MasterSwitch, SubBoiler)
	m.numeric(1, 1, 1, SetTemp, SubBoiler)
	m.integer(2, 1, MaxModulation, SubBurner)
	m.integer(3, 1, MinModulation, SubBurner)
	m.numeric(4, 1, 1, OffHysteresis, SubBoiler)
	m.numeric(5, 1, 1, OnHysteresis, SubBoiler)
	m.integer(6, 1, AntiPendelMinutes, SubNone)
	m.integer(8, 1, PumpFollowupMinutes, SubBoilerPump)
	m.integer(9, 1, MaxModulation, SubBoilerPump)
	m.integer(10, 1, MinModulation, SubBoilerPump)
}

func (m *msg) parseUBAMonitorFast() {
	m.numeric(0, 1, 1, SetpointTemp, SubBoiler)
	m.temperature(1, ActualTemp, SubBoiler)
	m.integer(3, 1, SetpointModulation, SubBurner)
	m.integer(4, 1, ActualModulation, SubBurner)
	m.boolean(7, 0, FlameActive, SubNone)
	m.boolean(7, 2, BurnerActive, SubNone)
	m.boolean(7, 3, IgnitionActive, SubNone)
	m.boolean(7, 5, PumpActive, SubBoiler)
	m.boolean(7, 6, ThreeWayValveOnWW, SubNone)
	m.boolean(7, 7, CirculationActive, SubNone)
	m.temperature(13, ActualTemp, SubReturnLine)
	m.numeric(15, 2, 10, FlameCurrent, SubNone)
	m.numericUnsigned(17, 1, 10, SystemPressure, SubNone)
	m.temperature(25, ActualTemp, SubIntake)

	if m.canAccess(18, 2) {
		raw := m.at(18, 2)
		m.formatted(ServiceCode, SubNone, fmt.Sprintf("%c%c", raw[0], raw[1]))
	}
	if m.canAccess(20, 2) {
		raw := m.at(20, 2)
		m.formatted(FaultCode, SubNone, fmt.Sprintf("%d", int(raw[0])<<8|int(raw[1])))
	}
}

func (m *msg) parseUBAMonitorSlow() {
	m.temperature(0, ActualTemp, SubOutdoor)
	m.temperature(2, ActualTemp, SubHeatExchanger)
	m.temperature(4, ActualTemp, SubExhaust)
	m.integer(9, 1, ActualModulation, SubBoilerPump)
	m.integer(10, 3, BurnerStarts, SubBoiler)
	m.integer(13, 3, OperatingMinutes, SubBoiler)
	m.integer(16, 3, OperatingMinutes2, SubBoiler)
	m.integer(19, 3, HeatingMinutes, SubBoiler)
}

func (m *msg) parseUBAMonitorWW() {
	m.numeric(0, 1, 1, SetpointTemp, SubWW)
	m.temperature(1, ActualTemp, SubWW)
	m.boolean(5, 0, DayMode, SubWW)
	m.boolean(5, 1, OneTimeLoadActive, SubWW)
	m.boolean(5, 2, DesinfectionActive, SubWW)
	m.boolean(5, 3, WWPreparationActive, SubNone)
	m.boolean(5, 4, BoostChargeActive, SubWW)
	m.boolean(5, 5, WWTempOK, SubNone)
	m.boolean(6, 0, Sensor1Failure, SubWW)
	m.boolean(6, 1, Sensor2Failure, SubWW)
	m.boolean(6, 2, Failure, SubWW)
	m.boolean(6, 3, DesinfectionFailure, SubWW)
	m.boolean(7, 0, DayMode, SubCirculation)
	m.boolean(7, 2, CirculationActive, SubNone)
	m.boolean(7, 3, Loading, SubWW)
	m.enumeration(8, WWSystemType, SubNone)
	m.numericUnsigned(9, 1, 10, FlowRate, SubWW)
	m.integer(10, 3, WWPreparationMinutes, SubNone)
	m.integer(13, 3, WWPreparations, SubNone)
}

func (m *msg) parseUBAParameterWW() {
	m.boolean(1, 0, MasterSwitch, SubWW)
	m.numeric(2, 1, 1, SetTemp, SubWW)
	m.enumeration(7, CirculationSwitchPoints, SubCirculation)
	m.numeric(8, 1, 1, DesinfectionTemp, SubWW)
}

// parseErrorLog extracts ErrorRecord entries. A paginated read may
// start mid-record; bytes up to the next record boundary are skipped.
func (m *msg) parseErrorLog() {
	start := int(m.f.Offset)
	if rem := start % ErrorRecordSize; rem != 0 {
		start += ErrorRecordSize - rem
	}
	for m.canAccess(start, ErrorRecordSize) {
		record, err := DecodeErrorRecord(m.at(start, ErrorRecordSize))
		if err == nil {
			m.emit(Value{
				Quantity:  ErrorEntry,
				Subsystem: SubNone,
				Reading: ErrorRecordEntry{
					LogType: m.f.Type,
					Index:   start / ErrorRecordSize,
					Record:  record,
				},
				Valid: true,
			})
		}
		start += ErrorRecordSize
	}
}

func (m *msg) parseSystemTime() {
	if m.canAccess(0, SystemTimeSize) {
		record, err := DecodeSystemTime(m.at(0, SystemTimeSize))
		if err == nil {
			m.emit(Value{Quantity: SystemTime, Subsystem: SubNone,
				Reading: record, Valid: true})
		}
	}
}

func (m *msg) parseRCWWOpmode() {
	m.boolean(0, 1, CustomScheduleActive, SubWW)
	m.boolean(1, 1, CustomScheduleActive, SubCirculation)
	m.enumeration(2, OpMode, SubWW)
	m.enumeration(3, OpMode, SubCirculation)
	m.boolean(4, 1, Desinfection, SubWW)
	m.enumeration(5, DesinfectionDay, SubWW)
	m.integer(6, 1, DesinfectionHour, SubWW)
	m.numeric(8, 1, 1, MaxTemp, SubWW)
	m.boolean(9, 1, OneTimeLoadIndicator, SubWW)
}

func (m *msg) parseRCSystemParameters() {
	m.numeric(5, 1, 1, MinTemp, SubRC)
	m.enumeration(6, BuildingType, SubRC)
	m.boolean(21, 1, OutdoorTempDamping, SubRC)
}

func (m *msg) parseRCOutdoorTemp() {
	m.numeric(0, 1, 1, DampedTemp, SubOutdoor)
}

func (m *msg) parseRCHKOpmode(sub Subsystem) {
	switch m.d.RCType {
	case RC30:
		if m.canAccess(0, 1) {
			value := m.at(0, 1)[0]
			var system, roomControlled byte
			if value == 4 || value == 5 {
				system = 0
				roomControlled = 1
			} else {
				system = value
			}
			m.emit(newEnumValue(HeatingSystem, sub, system))
			m.emit(newEnumValue(RelevantParameter, sub, roomControlled))
		}
	case RC35:
		m.enumeration(32, HeatingSystem, sub)
		m.enumeration(33, RelevantParameter, sub)
	}

	floorHeating := false
	if m.d.Cache != nil {
		if cached := m.d.Cache(HeatingSystem, sub); cached != nil && cached.Valid {
			if e, ok := cached.Reading.(Enum); ok && e == 3 {
				floorHeating = true
			}
		}
	}

	m.numeric(1, 1, 2, NightTemp, sub)
	m.numeric(2, 1, 2, DayTemp, sub)
	m.numeric(3, 1, 2, VacationTemp, sub)
	m.numeric(4, 1, 2, RoomInfluence, sub)
	m.numeric(6, 1, 2, RoomOffset, sub)
	m.enumeration(7, OpMode, sub)
	m.boolean(8, 0, FloorDrying, sub)
	if m.d.RCType == RC35 && floorHeating {
		m.numeric(35, 1, 1, MaxTemp, sub)
		m.numeric(36, 1, 1, DesignTemp, sub)
	} else {
		m.numeric(15, 1, 1, MaxTemp, sub)
		m.numeric(17, 1, 1, DesignTemp, sub)
	}
	m.numeric(16, 1, 1, MinTemp, sub)
	m.boolean(19, 1, ScheduleOptimizer, sub)
	m.numeric(22, 1, 1, SummerWinterThreshold, sub)
	m.numeric(23, 1, 1, FrostProtectTemp, sub)
	m.enumeration(25, ReductionMode, sub)
	m.enumeration(26, RemoteControlType, sub)
	m.enumeration(28, FrostProtectMode, sub)
	m.numeric(37, 1, 2, RoomOverrideTemp, sub)
	m.numeric(38, 1, 1, CancelReducedModeThreshold, sub)
	m.numeric(39, 1, 1, ReducedModeThreshold, sub)
	m.numeric(40, 1, 1, VacationReducedModeThreshold, sub)
	m.enumeration(41, VacationReductionMode, sub)
}

func (m *msg) parseRCHKMonitor(sub Subsystem) {
	m.boolean(0, 0, OffOptimization, sub)
	m.boolean(0, 1, OnOptimization, sub)
	m.boolean(0, 3, WWPriority, sub)
	m.boolean(0, 4, FloorDrying, sub)
	m.boolean(0, 6, FrostProtectActive, sub)
	m.boolean(1, 0, SummerMode, sub)
	m.boolean(1, 1, DayMode, sub)

	if m.canAccess(0, 2) {
		raw := m.at(0, 2)
		automatic := raw[0]&(1<<2) != 0
		day := raw[1]&(1<<1) != 0
		var mode byte
		switch {
		case automatic:
			mode = 2
		case day:
			mode = 1
		}
		m.emit(newEnumValue(OpMode, sub, mode))
	}

	m.numeric(2, 1, 2, RoomSetpointTemp, sub)
	m.temperature(3, RoomActualTemp, sub)
	m.integer(5, 1, OnOptimizationMinutes, sub)
	m.integer(6, 1, OffOptimizationMinutes, sub)

	if m.canAccess(7, 3) {
		raw := m.at(7, 3)
		m.emit(Value{Quantity: HeatingCurve, Subsystem: sub,
			Reading: Curve{raw[0], raw[1], raw[2]}, Valid: true})
	}

	if m.canAccess(10, 1) && m.at(10, 1)[0]&1 == 0 {
		m.numeric(10, 2, 100, RoomTempChange, sub)
	}

	m.numeric(12, 1, 1, RequestedPower, sub)
	m.boolean(13, 2, PartyMode, sub)
	m.boolean(13, 3, PauseMode, sub)
	m.boolean(13, 4, SwitchPointActive, sub)
	m.boolean(13, 6, VacationMode, sub)
	m.boolean(13, 7, HolidayMode, sub)
	m.numeric(14, 1, 1, SetpointTemp, sub)
}

func (m *msg) parseRCHKSchedule(sub Subsystem) {
	m.integer(85, 1, PauseHours, sub)
	m.integer(86, 1, PartyHours, sub)
}

func (m *msg) parseRC20Status() {
	sub := m.hkFromAddress(m.f.Source)
	m.boolean(0, 7, DayMode, sub)
	m.numeric(2, 1, 2, RoomSetpointTemp, sub)
	m.temperature(3, RoomActualTemp, sub)
}

func (m *msg) hkFromAddress(address byte) Subsystem {
	switch address {
	case AddrRC2xHK2, AddrMM10HK2:
		return SubHK2
	case AddrRC2xHK3, AddrMM10HK3:
		return SubHK3
	case AddrRC2xHK4, AddrMM10HK4:
		return SubHK4
	}
	return SubHK1
}

func (m *msg) parseWMTemp1() {
	m.temperature(0, ActualTemp, SubHK1)
	// byte 2 is 0 or 100; bit 2 distinguishes the two
	m.boolean(2, 2, PumpActive, SubHK1)
}

func (m *msg) parseWMTemp2() {
	m.temperature(0, ActualTemp, SubHK1)
}

func (m *msg) parseMMTemp() {
	sub := m.hkFromAddress(m.f.Source)
	m.numeric(0, 1, 1, SetpointTemp, sub)
	m.temperature(1, ActualTemp, sub)
	m.integer(3, 1, MixerControl, sub)
	m.boolean(3, 2, PumpActive, sub)
}

func (m *msg) parseSolarMonitor() {
	m.temperature(2, ActualTemp, SubSolarCollector)
	m.integer(4, 1, ActualModulation, SubSolarPump)
	m.temperature(5, ActualTemp, SubSolarTank)
	m.boolean(7, 1, PumpActive, SubSolar)
	m.integer(8, 3, OperatingMinutes, SubSolar)
}
