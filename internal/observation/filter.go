package observation

// Domain is an inclusive [Min, Max] range.
type Domain struct {
	Min float64
	Max float64
}

func (d Domain) contains(v float64) bool {
	return v >= d.Min && v <= d.Max
}

// Domains holds the physical range of every filtered class. Classes absent
// from the map (insolation time, leaf wetness time ratio, reported 24h
// totals) are left untouched.
var Domains = map[Class]Domain{
	ClassAirTemperature:      {-20, 60},
	ClassSoilTemperature:     {-30, 30},
	ClassHumidity:            {0, 100},
	ClassWindSpeed:           {0, 160},
	ClassGustSpeed:           {0, 250},
	ClassWindDirection:       {0, 360},
	ClassRainfall:            {0, 300},
	ClassRainRate:            {0, 1500},
	ClassSolar:               {0, 1500},
	ClassBarometer:           {900, 1100},
	ClassLeafWetness:         {0, 15},
	ClassLeafWetnessPercent:  {0, 100},
	ClassEvapotranspiration:  {0, 10},
	ClassSoilMoisture:        {0, 200},
	ClassSoilMoisturePercent: {0, 100},
	ClassUV:                  {0, 140},
	ClassVoltage:             {0, 30},
}

// humidityClampMax is the highest raw humidity clamped down to 100 rather
// than discarded. Capacitive sensors drift slightly above saturation.
const humidityClampMax = 120

// Filter sets presence to false on every field of o outside its domain.
// Humidities in (100, 120] are clamped to 100. Filter is idempotent.
func Filter(o *Observation) {
	for _, def := range fieldTable {
		if !o.Present(def.Field) {
			continue
		}
		dom, ok := Domains[def.Class]
		if !ok {
			continue
		}
		v := o.Float(def.Field).Float64

		if def.Class == ClassHumidity && v > dom.Max && v <= humidityClampMax {
			o.SetInt(def.Field, int64(dom.Max))
			continue
		}
		if !dom.contains(v) {
			o.Clear(def.Field)
		}
	}
}
