// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package ems

import (
	"fmt"
	"strconv"
)

// Enum rendering tables, keyed by quantity. OpMode additionally depends
// on the subsystem the value belongs to.

var wwSystemNames = map[byte]string{
	WWSystemNone:          "none",
	WWSystemTankless:      "tankless",
	WWSystemSmall:         "small",
	WWSystemLarge:         "large",
	WWSystemStorageCharge: "storagecharge",
}

var circulationCountNames = map[byte]string{
	0: "off", 1: "1x", 2: "2x", 3: "3x",
	4: "4x", 5: "5x", 6: "6x", 7: "alwayson",
}

var maintenanceReminderNames = map[byte]string{
	0: "off", 1: "byhours", 2: "bydate",
}

var maintenanceDueNames = map[byte]string{
	0: "no", 3: "byhours", 8: "bydate",
}

var errorLogNames = map[uint16]string{
	0x10: "L", 0x11: "B", 0x12: "S", 0x13: "D",
}

var opModeNames = map[byte]string{
	0: "off", 1: "on", 2: "auto",
}

var hkOpModeNames = map[byte]string{
	0: "off", 1: "manual", 2: "auto",
}

var wwOpModeNames = map[byte]string{
	0: "off", 1: "eco", 2: "comfort", 3: "followheater", 4: "auto",
}

var circOpModeNames = map[byte]string{
	0: "off", 1: "on", 2: "followww", 3: "auto",
}

var weekdayEnumNames = map[byte]string{
	0: "monday", 1: "tuesday", 2: "wednesday", 3: "thursday",
	4: "friday", 5: "saturday", 6: "sunday", 7: "everyday",
}

var buildingTypeNames = map[byte]string{
	0: "light", 1: "medium", 2: "heavy",
}

var heatingSystemNames = map[byte]string{
	0: "none", 1: "radiator", 2: "convection", 3: "floorheater",
}

var reductionModeNames = map[byte]string{
	0: "offmode", 1: "reduced", 2: "raumhalt", 3: "aussenhalt",
}

var frostProtectNames = map[byte]string{
	0: "off", 1: "byoutdoortemp", 2: "byindoortemp",
}

var relevantParameterNames = map[byte]string{
	0: "outdoor", 1: "indoor",
}

var vacationReductionNames = map[byte]string{
	2: "indoor", 3: "outdoor",
}

var remoteTypeNames = map[byte]string{
	0: "none", 1: "rc20", 2: "rc3x",
}

func enumTable(v Value) map[byte]string {
	switch v.Quantity {
	case WWSystemType:
		return wwSystemNames
	case CirculationSwitchPoints:
		return circulationCountNames
	case MaintenanceReminder:
		return maintenanceReminderNames
	case MaintenanceDue:
		return maintenanceDueNames
	case OpMode:
		switch {
		case v.Subsystem.IsHK():
			return hkOpModeNames
		case v.Subsystem == SubWW:
			return wwOpModeNames
		case v.Subsystem == SubCirculation:
			return circOpModeNames
		}
		return opModeNames
	case DesinfectionDay:
		return weekdayEnumNames
	case BuildingType:
		return buildingTypeNames
	case HeatingSystem:
		return heatingSystemNames
	case ReductionMode:
		return reductionModeNames
	case FrostProtectMode:
		return frostProtectNames
	case RelevantParameter:
		return relevantParameterNames
	case VacationReductionMode:
		return vacationReductionNames
	case RemoteControlType:
		return remoteTypeNames
	}
	return nil
}

// FormatValue renders the reading of a value for publication. Invalid
// numeric readings render as "unavailable".
func FormatValue(v Value) string {
	switch r := v.Reading.(type) {
	case Numeric:
		if !v.Valid {
			return "unavailable"
		}
		return strconv.FormatFloat(float64(r), 'g', -1, 64)
	case Integer:
		if !v.Valid {
			return "unavailable"
		}
		return strconv.FormatUint(uint64(r), 10)
	case Boolean:
		if r {
			return "on"
		}
		return "off"
	case Enum:
		if table := enumTable(v); table != nil {
			if name, ok := table[byte(r)]; ok {
				return name
			}
		}
		return strconv.Itoa(int(r))
	case Curve:
		return fmt.Sprintf("%d/%d/%d", r[0], r[1], r[2])
	case ErrorRecordEntry:
		formatted := r.Record.String()
		if formatted == "" {
			formatted = "empty"
		}
		prefix := errorLogNames[r.LogType]
		return fmt.Sprintf("%s%02d %s", prefix, r.Index, formatted)
	case DateRecord:
		return r.String()
	case SystemTimeRecord:
		return r.String()
	case Formatted:
		return string(r)
	}
	return ""
}
