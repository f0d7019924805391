// Package deltasol registers the packet layouts of the DeltaSol MX
// solar regulator family. Field names follow the German specification
// texts the controllers ship with.
package deltasol

import "github.com/resol-de/vbus-sync/internal/spec"

const (
	addrRegler = 0x7E11 // DeltaSol MX [Regler]
	addrWMZ    = 0x7E30 // DeltaSol MX [WMZ 1]
	addrDFA    = 0x0010 // direct frame acquisition (the logger)

	cmdCyclicData = 0x0100
)

func init() {
	spec.Register(spec.PacketSpec{
		Key:  spec.Key{Source: addrRegler, Destination: addrDFA, Command: cmdCyclicData},
		Name: "DeltaSol MX [Regler]",
		Fields: []spec.FieldDescriptor{
			{Label: "Temperatur Sensor 1", Offset: 0, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Temperatur Sensor 2", Offset: 2, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Temperatur Sensor 3", Offset: 4, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Temperatur Sensor 4", Offset: 6, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Einstrahlung Sensor 5", Offset: 8, Width: 2, Signed: false, Factor: 1, Precision: 0, Unit: "W/m²"},
			{Label: "Volumenstrom Sensor 6", Offset: 10, Width: 4, Signed: false, Factor: 1, Precision: 0, Unit: "l/h"},
			{Label: "Druck Sensor 7", Offset: 14, Width: 2, Signed: true, Factor: 0.01, Precision: 2, Unit: "bar"},
			{Label: "Drehzahl Relais 1", Offset: 16, Width: 1, Signed: false, Factor: 1, Precision: 0, Unit: "%"},
			{Label: "Drehzahl Relais 2", Offset: 17, Width: 1, Signed: false, Factor: 1, Precision: 0, Unit: "%"},
			{Label: "Betriebsstunden Relais 1", Offset: 18, Width: 2, Signed: false, Factor: 1, Precision: 0, Unit: "h"},
			{Label: "Betriebsstunden Relais 2", Offset: 20, Width: 2, Signed: false, Factor: 1, Precision: 0, Unit: "h"},
			{Label: "Fehlermaske", Offset: 22, Width: 2, Signed: false, Factor: 1, Precision: 0, Unit: ""},
		},
	})
	spec.Register(spec.PacketSpec{
		Key:  spec.Key{Source: addrWMZ, Destination: addrDFA, Command: cmdCyclicData},
		Name: "DeltaSol MX [WMZ 1]",
		Fields: []spec.FieldDescriptor{
			{Label: "Wärmemenge", Offset: 0, Width: 4, Signed: false, Factor: 1, Precision: 0, Unit: "Wh"},
			{Label: "Leistung", Offset: 4, Width: 4, Signed: true, Factor: 1, Precision: 0, Unit: "W"},
			{Label: "Temperatur Vorlauf", Offset: 8, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Temperatur Rücklauf", Offset: 10, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
			{Label: "Volumenstrom", Offset: 12, Width: 4, Signed: false, Factor: 1, Precision: 0, Unit: "l/h"},
		},
	})
}
