package observation

import "fmt"

// Field identifies one measurement slot of an Observation.
type Field int

// Kind is the semantic value type of a field.
type Kind int

const (
	// KindFloat fields hold float64 values.
	KindFloat Kind = iota
	// KindInt fields hold integer values.
	KindInt
)

func (k Kind) String() string {
	if k == KindInt {
		return "int"
	}
	return "float"
}

// Class groups fields sharing a physical domain.
type Class int

const (
	ClassNone Class = iota
	ClassAirTemperature
	ClassSoilTemperature
	ClassHumidity
	ClassWindSpeed
	ClassGustSpeed
	ClassWindDirection
	ClassRainfall
	ClassRainRate
	ClassSolar
	ClassBarometer
	ClassLeafWetness
	ClassLeafWetnessPercent
	ClassEvapotranspiration
	ClassSoilMoisture
	ClassSoilMoisturePercent
	ClassUV
	ClassVoltage
)

const (
	OutsideTemp Field = iota
	InsideTemp
	DewPoint
	HeatIndex
	WindChill
	THSWIndex
	LeafTemp1
	LeafTemp2
	SoilTemp1
	SoilTemp2
	SoilTemp3
	SoilTemp4
	ExtraTemp1
	ExtraTemp2
	ExtraTemp3
	MinOutsideTemp
	MaxOutsideTemp
	SoilTemp10cm
	SoilTemp20cm
	SoilTemp30cm
	SoilTemp40cm
	SoilTemp50cm
	SoilTemp60cm
	OutsideHum
	InsideHum
	ExtraHum1
	ExtraHum2
	SoilMoistures1
	SoilMoistures2
	SoilMoistures3
	SoilMoistures4
	SoilMoisture10cm
	SoilMoisture20cm
	SoilMoisture30cm
	SoilMoisture40cm
	SoilMoisture50cm
	SoilMoisture60cm
	LeafWetnesses1
	LeafWetnesses2
	LeafWetnessPercent1
	LeafWetnessTimeRatio1
	Barometer
	SolarRad
	UV
	InsolationTime
	WindSpeed
	MinWindSpeed
	WindGust
	WindDir
	Rainfall
	RainRate
	ET
	VoltageBattery
	VoltageSolarPanel
	VoltageBackup
	Rainfall24
	InsolationTime24

	numFields
)

// FieldDef is one row of the field table shared by Set, Get, IsPresent,
// the filter and the store codecs.
type FieldDef struct {
	Field Field
	Kind  Kind
	Class Class
	// Names lists the accepted aliases. Names[0] is also the store column.
	Names []string
}

// Column returns the store column name of the field.
func (d FieldDef) Column() string {
	return d.Names[0]
}

var fieldTable = [numFields]FieldDef{
	{OutsideTemp, KindFloat, ClassAirTemperature, []string{"outsidetemp", "outside_temperature", "temperature"}},
	{InsideTemp, KindFloat, ClassAirTemperature, []string{"insidetemp", "inside_temperature"}},
	{DewPoint, KindFloat, ClassAirTemperature, []string{"dewpoint", "dew_point"}},
	{HeatIndex, KindFloat, ClassAirTemperature, []string{"heatindex", "heat_index"}},
	{WindChill, KindFloat, ClassAirTemperature, []string{"windchill", "wind_chill"}},
	{THSWIndex, KindFloat, ClassAirTemperature, []string{"thswindex", "thsw_index"}},
	{LeafTemp1, KindFloat, ClassAirTemperature, []string{"leaftemp1", "leaf_temperature1"}},
	{LeafTemp2, KindFloat, ClassAirTemperature, []string{"leaftemp2", "leaf_temperature2"}},
	{SoilTemp1, KindFloat, ClassSoilTemperature, []string{"soiltemp1", "soil_temperature1"}},
	{SoilTemp2, KindFloat, ClassSoilTemperature, []string{"soiltemp2", "soil_temperature2"}},
	{SoilTemp3, KindFloat, ClassSoilTemperature, []string{"soiltemp3", "soil_temperature3"}},
	{SoilTemp4, KindFloat, ClassSoilTemperature, []string{"soiltemp4", "soil_temperature4"}},
	{ExtraTemp1, KindFloat, ClassAirTemperature, []string{"extratemp1", "extra_temperature1"}},
	{ExtraTemp2, KindFloat, ClassAirTemperature, []string{"extratemp2", "extra_temperature2"}},
	{ExtraTemp3, KindFloat, ClassAirTemperature, []string{"extratemp3", "extra_temperature3"}},
	{MinOutsideTemp, KindFloat, ClassAirTemperature, []string{"min_outside_temperature", "minoutsidetemp"}},
	{MaxOutsideTemp, KindFloat, ClassAirTemperature, []string{"max_outside_temperature", "maxoutsidetemp"}},
	{SoilTemp10cm, KindFloat, ClassSoilTemperature, []string{"soiltemp10cm", "soil_temperature_10cm"}},
	{SoilTemp20cm, KindFloat, ClassSoilTemperature, []string{"soiltemp20cm", "soil_temperature_20cm"}},
	{SoilTemp30cm, KindFloat, ClassSoilTemperature, []string{"soiltemp30cm", "soil_temperature_30cm"}},
	{SoilTemp40cm, KindFloat, ClassSoilTemperature, []string{"soiltemp40cm", "soil_temperature_40cm"}},
	{SoilTemp50cm, KindFloat, ClassSoilTemperature, []string{"soiltemp50cm", "soil_temperature_50cm"}},
	{SoilTemp60cm, KindFloat, ClassSoilTemperature, []string{"soiltemp60cm", "soil_temperature_60cm"}},
	{OutsideHum, KindInt, ClassHumidity, []string{"outsidehum", "outside_humidity", "humidity"}},
	{InsideHum, KindInt, ClassHumidity, []string{"insidehum", "inside_humidity"}},
	{ExtraHum1, KindInt, ClassHumidity, []string{"extrahum1", "extra_humidity1"}},
	{ExtraHum2, KindInt, ClassHumidity, []string{"extrahum2", "extra_humidity2"}},
	{SoilMoistures1, KindInt, ClassSoilMoisture, []string{"soilmoistures1", "soil_moisture1"}},
	{SoilMoistures2, KindInt, ClassSoilMoisture, []string{"soilmoistures2", "soil_moisture2"}},
	{SoilMoistures3, KindInt, ClassSoilMoisture, []string{"soilmoistures3", "soil_moisture3"}},
	{SoilMoistures4, KindInt, ClassSoilMoisture, []string{"soilmoistures4", "soil_moisture4"}},
	{SoilMoisture10cm, KindFloat, ClassSoilMoisturePercent, []string{"soilmoisture10cm", "soil_moisture_10cm"}},
	{SoilMoisture20cm, KindFloat, ClassSoilMoisturePercent, []string{"soilmoisture20cm", "soil_moisture_20cm"}},
	{SoilMoisture30cm, KindFloat, ClassSoilMoisturePercent, []string{"soilmoisture30cm", "soil_moisture_30cm"}},
	{SoilMoisture40cm, KindFloat, ClassSoilMoisturePercent, []string{"soilmoisture40cm", "soil_moisture_40cm"}},
	{SoilMoisture50cm, KindFloat, ClassSoilMoisturePercent, []string{"soilmoisture50cm", "soil_moisture_50cm"}},
	{SoilMoisture60cm, KindFloat, ClassSoilMoisturePercent, []string{"soilmoisture60cm", "soil_moisture_60cm"}},
	{LeafWetnesses1, KindInt, ClassLeafWetness, []string{"leafwetnesses1", "leaf_wetness1"}},
	{LeafWetnesses2, KindInt, ClassLeafWetness, []string{"leafwetnesses2", "leaf_wetness2"}},
	{LeafWetnessPercent1, KindFloat, ClassLeafWetnessPercent, []string{"leafwetness_percent1", "leaf_wetness_percent1"}},
	{LeafWetnessTimeRatio1, KindInt, ClassNone, []string{"leafwetness_timeratio1", "leaf_wetness_timeratio1"}},
	{Barometer, KindFloat, ClassBarometer, []string{"barometer", "barometric_pressure", "pressure"}},
	{SolarRad, KindInt, ClassSolar, []string{"solarrad", "solar_radiation"}},
	{UV, KindInt, ClassUV, []string{"uv", "uv_index"}},
	{InsolationTime, KindInt, ClassNone, []string{"insolation_time", "sunshine_duration"}},
	{WindSpeed, KindFloat, ClassWindSpeed, []string{"windspeed", "wind_speed"}},
	{MinWindSpeed, KindFloat, ClassWindSpeed, []string{"min_windspeed", "min_wind_speed"}},
	{WindGust, KindFloat, ClassGustSpeed, []string{"windgust", "wind_gust", "gust"}},
	{WindDir, KindInt, ClassWindDirection, []string{"winddir", "wind_direction"}},
	{Rainfall, KindFloat, ClassRainfall, []string{"rainfall", "rain"}},
	{RainRate, KindFloat, ClassRainRate, []string{"rainrate", "rain_rate"}},
	{ET, KindFloat, ClassEvapotranspiration, []string{"et", "evapotranspiration"}},
	{VoltageBattery, KindFloat, ClassVoltage, []string{"voltage_battery", "battery_voltage"}},
	{VoltageSolarPanel, KindFloat, ClassVoltage, []string{"voltage_solar_panel", "solar_panel_voltage"}},
	{VoltageBackup, KindFloat, ClassVoltage, []string{"voltage_backup", "backup_voltage"}},
	{Rainfall24, KindFloat, ClassNone, []string{"rainfall24", "rainfall_24h"}},
	{InsolationTime24, KindInt, ClassNone, []string{"insolation_time24", "insolation_time_24h"}},
}

var fieldsByName map[string]Field

func init() {
	fieldsByName = make(map[string]Field, 3*len(fieldTable))
	for i, def := range fieldTable {
		if def.Field != Field(i) {
			panic(fmt.Sprintf("observation: field table out of order at %d (%s)", i, def.Column()))
		}
		for _, n := range def.Names {
			if _, dup := fieldsByName[n]; dup {
				panic("observation: duplicate field alias " + n)
			}
			fieldsByName[n] = def.Field
		}
	}
}

// Lookup resolves a field alias. Resolution is exact and case-sensitive.
func Lookup(name string) (FieldDef, bool) {
	f, ok := fieldsByName[name]
	if !ok {
		return FieldDef{}, false
	}
	return fieldTable[f], true
}

// Def returns the table entry of f.
func (f Field) Def() FieldDef {
	return fieldTable[f]
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldTable[f].Column()
}

// Fields returns every field definition in column order.
func Fields() []FieldDef {
	out := make([]FieldDef, len(fieldTable))
	copy(out, fieldTable[:])
	return out
}

// Columns returns the store column names in field order.
func Columns() []string {
	cols := make([]string, len(fieldTable))
	for i, def := range fieldTable {
		cols[i] = def.Column()
	}
	return cols
}
