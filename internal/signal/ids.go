package signal

// 数字量信号编号
const (
	UnitIsOnline      uint32 = 1
	TstatBatteryLowFB uint32 = 4
	OccBatteryLowFB   uint32 = 5
	OccupancyDetected uint32 = 8
	VacancyDetected   uint32 = 9
	IFTNStatusEqu     uint32 = 23
	AwayStatusB       uint32 = 24
	Lamp1OnFB         uint32 = 26
	Lamp1OffFB        uint32 = 27
)

// 串行量信号编号
const (
	MultiplexedStamp uint32 = 2
	UnitName         uint32 = 3
	MotionLocation   uint32 = 4
	Date             uint32 = 5
)

// 模拟量信号编号
const (
	SystemMode        uint32 = 2
	SetSetpointFB     uint32 = 3
	LocalTempFBScaled uint32 = 4
	ResidentStatus    uint32 = 6
	SystemStatusFDMS  uint32 = 8
)

var digitalNames = map[uint32]string{
	UnitIsOnline:      "Unit_Is_Online",
	TstatBatteryLowFB: "TSTAT_Battery_Low_FB",
	OccBatteryLowFB:   "OCC_Battery_Low_FB",
	OccupancyDetected: "Occupancy_Detected",
	VacancyDetected:   "Vacancy_Detected",
	IFTNStatusEqu:     "IFTN_Status_Equ",
	AwayStatusB:       "Away_Status_B",
	Lamp1OnFB:         "Lamp_1_On_FB",
	Lamp1OffFB:        "Lamp_1_Off_FB",
}

var serialNames = map[uint32]string{
	MultiplexedStamp: "Multiplexed_Stamp",
	UnitName:         "Unit_Name",
	MotionLocation:   "Motion_Location",
	Date:             "Date",
}

var analogNames = map[uint32]string{
	SystemMode:        "System_Mode",
	SetSetpointFB:     "Set_Setpoint_FB",
	LocalTempFBScaled: "Local_Temp_FB_Scaled",
	ResidentStatus:    "Resident_Status",
	SystemStatusFDMS:  "System_Status_FDMS",
}

// DigitalName 数字量信号名称，未知编号返回 "unknown"
func DigitalName(id uint32) string { return lookup(digitalNames, id) }

// SerialName 串行量信号名称
func SerialName(id uint32) string { return lookup(serialNames, id) }

// AnalogName 模拟量信号名称
func AnalogName(id uint32) string { return lookup(analogNames, id) }

func lookup(names map[uint32]string, id uint32) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "unknown"
}
