// Package deltatherm registers the packet layouts of the DeltaTherm FK
// fresh water and heating regulators.
package deltatherm

import "github.com/resol-de/vbus-sync/internal/spec"

const (
	addrRegler = 0x5400 // DeltaTherm FK [Regler]
	addrDFA    = 0x0010

	cmdCyclicData = 0x0100
)

func init() {
	spec.Register(spec.PacketSpec{
		Key:  spec.Key{Source: addrRegler, Destination: addrDFA, Command: cmdCyclicData},
		Name: "DeltaTherm FK [Regler]",
		Fields: []spec.FieldDescriptor{
			{Label: "Temperatur Sensor 1", Offset: 0, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Temperatur Sensor 2", Offset: 2, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Temperatur Sensor 3", Offset: 4, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Temperatur Sensor 4", Offset: 6, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Drehzahl Relais 1", Offset: 8, Width: 1, Signed: false, Factor: 1, Precision: 0, Unit: "%"},
			{Label: "Drehzahl Relais 2", Offset: 9, Width: 1, Signed: false, Factor: 1, Precision: 0, Unit: "%"},
			{Label: "Betriebsstunden Relais 1", Offset: 10, Width: 2, Signed: false, Factor: 1, Precision: 0, Unit: "h"},
			{Label: "Betriebsstunden Relais 2", Offset: 12, Width: 2, Signed: false, Factor: 1, Precision: 0, Unit: "h"},
			{Label: "Systemzeit", Offset: 14, Width: 2, Signed: false, Factor: 1, Precision: 0, Unit: ""},
		},
	})
}
