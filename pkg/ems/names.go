// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package ems

// API names used on broker topics, in the cache selector and on the
// data socket. Quantities or subsystems without a name are internal
// and never published.

var quantityNames = map[Quantity]string{
	SetpointTemp:                 "targettemperature",
	ActualTemp:                   "currenttemperature",
	SetTemp:                      "settemperature",
	MinTemp:                      "mintemperature",
	MaxTemp:                      "maxtemperature",
	ManualTemp:                   "manualtemperature",
	BoostTemp:                    "boosttemperature",
	BoostHours:                   "boosthours",
	DayTemp:                      "daytemperature",
	NightTemp:                    "nighttemperature",
	VacationTemp:                 "vacationtemperature",
	RoomSetpointTemp:             "roomtargettemperature",
	RoomActualTemp:               "roomcurrenttemperature",
	RoomInfluence:                "maxroomeffect",
	RoomOffset:                   "roomtemperatureoffset",
	DampedTemp:                   "dampedtemperature",
	DesinfectionTemp:             "desinfectiontemperature",
	RoomTempChange:               "roomtemperaturechange",
	MixerControl:                 "mixercontrol",
	FlameCurrent:                 "flamecurrent",
	SystemPressure:               "pressure",
	ActualModulation:             "currentmodulation",
	MinModulation:                "minmodulation",
	MaxModulation:                "maxmodulation",
	SetpointModulation:           "targetmodulation",
	RequestedPower:               "requestedpower",
	OnHysteresis:                 "onhysteresis",
	OffHysteresis:                "offhysteresis",
	SummerWinterThreshold:        "summerwinterthreshold",
	FrostProtectTemp:             "frostprotecttemperature",
	DesignTemp:                   "designtemperature",
	RoomOverrideTemp:             "temperatureoverride",
	ReducedModeThreshold:         "reducedmodethreshold",
	VacationReducedModeThreshold: "vacationreducedmodethreshold",
	CancelReducedModeThreshold:   "cancelreducedmodethreshold",
	FlowRate:                     "flowrate",

	OperatingMinutes:        "operatingminutes",
	OperatingMinutes2:       "operatingminutes2",
	HeatingMinutes:          "heatingminutes",
	WWPreparationMinutes:    "warmwaterminutes",
	BurnerStarts:            "heaterstarts",
	WWPreparations:          "warmwaterpreparations",
	DesinfectionHour:        "desinfectionhour",
	HectoHoursBeforeService: "maintenanceintervalin100hours",
	OnOptimizationMinutes:   "onoptimizationminutes",
	OffOptimizationMinutes:  "offoptimizationminutes",
	AntiPendelMinutes:       "antipendelminutes",
	PumpFollowupMinutes:     "followupminutes",
	PartyHours:              "partyhours",
	PauseHours:              "pausehours",

	FlameActive:          "flameactive",
	BurnerActive:         "heateractive",
	IgnitionActive:       "ignitionactive",
	PumpActive:           "pumpactive",
	CirculationActive:    "zirkpumpactive",
	ThreeWayValveOnWW:    "3wayonww",
	OneTimeLoadActive:    "onetimeload",
	DesinfectionActive:   "desinfectionactive",
	BoostChargeActive:    "boostcharge",
	WWPreparationActive:  "warmwaterpreparationactive",
	WWTempOK:             "warmwatertempok",
	DayMode:              "daymode",
	SummerMode:           "summermode",
	OffOptimization:      "offoptimization",
	OnOptimization:       "onoptimization",
	FloorDrying:          "floordrying",
	WWPriority:           "wwoverride",
	HolidayMode:          "holidaymode",
	VacationMode:         "vacationmode",
	PartyMode:            "partymode",
	PauseMode:            "pausemode",
	FrostProtectActive:   "frostprotectmodeactive",
	SwitchPointActive:    "switchpointactive",
	MasterSwitch:         "masterswitch",
	CustomScheduleActive: "customschedule",
	Desinfection:         "desinfection",
	OneTimeLoadIndicator: "onetimeloadindicator",
	OutdoorTempDamping:   "outdoortempdamping",
	ScheduleOptimizer:    "scheduleoptimizer",
	Sensor1Failure:       "sensor1failure",
	Sensor2Failure:       "sensor2failure",
	Failure:              "failure",
	DesinfectionFailure:  "desinfectionfailure",
	Loading:              "loading",

	WWSystemType:            "warmwatersystemtype",
	CirculationSwitchPoints: "switchpoints",
	MaintenanceReminder:     "maintenancereminder",
	MaintenanceDue:          "maintenancedue",
	OpMode:                  "opmode",
	DesinfectionDay:         "desinfectionday",
	BuildingType:            "buildingtype",
	ReductionMode:           "reductionmode",
	HeatingSystem:           "heatingsystem",
	RelevantParameter:       "relevantparameter",
	VacationReductionMode:   "vacationreductionmode",
	FrostProtectMode:        "frostprotectmode",
	RemoteControlType:       "remotecontroltype",

	HeatingCurve: "characteristic",
	ErrorEntry:   "error",
	SystemTime:   "systemtime",
	ServiceDate:  "maintenancedate",

	ServiceCode:        "servicecode",
	FaultCode:          "errorcode",
	FaultMessageCode:   "failurecode",
	FaultMessageNumber: "failurenumber",
}

var subsystemNames = map[Subsystem]string{
	SubHK1:            "hk1",
	SubHK2:            "hk2",
	SubHK3:            "hk3",
	SubHK4:            "hk4",
	SubRC:             "rc",
	SubBoiler:         "heater",
	SubBoilerPump:     "heaterpump",
	SubBurner:         "burner",
	SubReturnLine:     "returnflow",
	SubHeatExchanger:  "heatexchanger",
	SubWW:             "ww",
	SubCirculation:    "zirkpump",
	SubOutdoor:        "outdoor",
	SubExhaust:        "exhaust",
	SubIntake:         "intake",
	SubSolar:          "solar",
	SubSolarPump:      "solarpump",
	SubSolarTank:      "solartank",
	SubSolarCollector: "solarcollector",
}

// QuantityName returns the API name of a quantity, or "" if it has none.
func QuantityName(q Quantity) string {
	return quantityNames[q]
}

// SubsystemName returns the API name of a subsystem, or "" for SubNone.
func SubsystemName(s Subsystem) string {
	return subsystemNames[s]
}
