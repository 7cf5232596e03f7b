package sample

import "github.com/itohio/goafe/pkg/afe"

// Celsius converts a temperature sensor result into degrees Celsius.
func Celsius(code uint16) float64 {
	return float64(code)/afe.TemperatureCodesPerKelvin - 273.15
}
