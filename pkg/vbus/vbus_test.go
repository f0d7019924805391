package vbus

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/resol-de/vbus-sync/internal/spec"
	"github.com/resol-de/vbus-sync/internal/testutil"
)

var testStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testTable() *spec.Table {
	return spec.NewTable(spec.PacketSpec{
		Key:  spec.Key{Source: 1, Destination: 2, Command: 0x0100},
		Name: "test device",
		Fields: []spec.FieldDescriptor{
			{Label: "speed", Offset: 0, Width: 2, Signed: false, Factor: 0.1, Precision: 1, Unit: "rpm"},
			{Label: "temp", Offset: 2, Width: 2, Signed: true, Factor: 0.1, Precision: 1, Unit: "°C"},
		},
	})
}

func testOptions() ConvertOptions {
	return ConvertOptions{
		Table:     testTable(),
		StartTime: testStart,
		Interval:  time.Second,
	}
}

func speedTempFrame() []byte {
	payload := append(testutil.LE16(100), testutil.LE16(250)...)
	return testutil.EncodePacket(2, 1, 0x0100, payload)
}

func TestConvertCleanFile(t *testing.T) {
	var data []byte
	for i := 0; i < 3; i++ {
		data = append(data, speedTempFrame()...)
	}

	var out bytes.Buffer
	summary, err := Convert(context.Background(), data, SingleSink(&out), testOptions())
	require.NoError(t, err)
	require.Equal(t, 3, summary.FramesSeen)
	require.Equal(t, 3, summary.Records)
	require.Equal(t, 0, summary.FramesRejected)
	require.False(t, summary.Truncated)

	want := "Datum\tspeed [rpm]\ttemp [°C]\n" +
		"01.03.2024 00:00:00\t10.0\t25.0\n" +
		"01.03.2024 00:00:01\t10.0\t25.0\n" +
		"01.03.2024 00:00:02\t10.0\t25.0\n"
	require.Equal(t, want, out.String())
}

func TestConvertResynchronizes(t *testing.T) {
	frame := speedTempFrame()
	var data []byte
	data = append(data, 0x13, 0x37, 0xAA, 0x55)
	data = append(data, frame...)
	data = append(data, 0xAA, 0x01, 0x02, 0x03, 0x04, 0x10, 0x05, 0x06, 0x07, 0x00)
	data = append(data, frame...)
	data = append(data, 0xFE)

	var out bytes.Buffer
	summary, err := Convert(context.Background(), data, SingleSink(&out), testOptions())
	require.NoError(t, err)
	require.Equal(t, 2, summary.FramesSeen)
	require.Equal(t, 2, summary.Records)
	require.GreaterOrEqual(t, summary.FramesRejected, 1)
	require.Greater(t, summary.SkippedBytes, 0)
}

func TestConvertIdempotent(t *testing.T) {
	var data []byte
	for i := 0; i < 4; i++ {
		data = append(data, speedTempFrame()...)
	}
	data = append(data, 0x00, 0x01) // trailing noise

	var first, second bytes.Buffer
	_, err := Convert(context.Background(), data, SingleSink(&first), testOptions())
	require.NoError(t, err)
	_, err = Convert(context.Background(), data, SingleSink(&second), testOptions())
	require.NoError(t, err)
	require.Equal(t, first.String(), second.String())
	require.NotEmpty(t, first.String())
}

func TestConvertUnknownCommand(t *testing.T) {
	data := testutil.EncodePacket(2, 1, 0x0700, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	var out bytes.Buffer
	summary, err := Convert(context.Background(), data, SingleSink(&out), testOptions())
	require.NoError(t, err)
	require.Equal(t, 1, summary.FramesSeen)
	require.Equal(t, 1, summary.FramesUnrecognized)
	require.Equal(t, 1, summary.Records)
	// The row appears with no value columns; the payload stays
	// available for diagnostics through the record API.
	require.Equal(t, "Datum\n01.03.2024 00:00:00\n", out.String())
}

func TestConvertTruncatedTail(t *testing.T) {
	frame := speedTempFrame()
	var data []byte
	data = append(data, frame...)
	data = append(data, frame...)
	data = append(data, frame[:13]...) // valid header, payload cut short

	var out bytes.Buffer
	summary, err := Convert(context.Background(), data, SingleSink(&out), testOptions())
	require.NoError(t, err)
	require.True(t, summary.Truncated)
	require.Equal(t, 2, summary.FramesSeen)
	require.Equal(t, 2, summary.Records)
}

var errSinkFull = errors.New("sink full")

// failingWriter accepts a fixed number of writes, then fails.
type failingWriter struct{ writesLeft int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.writesLeft == 0 {
		return 0, errSinkFull
	}
	w.writesLeft--
	return len(p), nil
}

func TestConvertSinkWriteFailure(t *testing.T) {
	var data []byte
	for i := 0; i < 3; i++ {
		data = append(data, speedTempFrame()...)
	}

	// The header and the first row fit, the second row hits the full
	// sink and must abort the conversion with a populated summary.
	w := &failingWriter{writesLeft: 2}
	summary, err := Convert(context.Background(), data, SingleSink(w), testOptions())
	require.ErrorIs(t, err, errSinkFull)
	require.Equal(t, 3, summary.FramesSeen)
	require.Equal(t, 1, summary.Records)
	require.False(t, summary.Truncated)
}

func TestConvertSinkOpenFailure(t *testing.T) {
	var data []byte
	data = append(data, speedTempFrame()...)
	data = append(data, speedTempFrame()...)

	sink := func(Pair, *Schema) (io.WriteCloser, error) {
		return nil, errSinkFull
	}
	summary, err := Convert(context.Background(), data, sink, testOptions())
	require.ErrorIs(t, err, errSinkFull)
	require.Equal(t, 2, summary.FramesSeen)
	require.Equal(t, 0, summary.Records)
}

func TestConvertLogsRejectedCandidates(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	old := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(old)

	// A sync candidate with a bad header checksum, then a real frame.
	var data []byte
	data = append(data, 0xAA, 0x01, 0x02, 0x03, 0x04, 0x10, 0x05, 0x06, 0x07, 0x00)
	data = append(data, speedTempFrame()...)

	var out bytes.Buffer
	summary, err := Convert(context.Background(), data, SingleSink(&out), testOptions())
	require.NoError(t, err)
	require.Equal(t, 1, summary.FramesRejected)

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "rejected sync candidates" {
			found = true
			require.Equal(t, 1, e.Data["candidates"])
		}
	}
	require.True(t, found, "no debug entry for the rejected candidate")
}

func TestConvertSchemaStability(t *testing.T) {
	table := testTable()
	table.Register(spec.PacketSpec{
		Key:  spec.Key{Source: 1, Destination: 2, Command: 0x0200},
		Name: "late fields",
		Fields: []spec.FieldDescriptor{
			{Label: "late", Offset: 0, Width: 2, Factor: 1, Precision: 0, Unit: "x"},
		},
	})
	opts := testOptions()
	opts.Table = table

	// The 0x0200 command only shows up after the pair's schema froze,
	// so its field never becomes a column.
	var data []byte
	data = append(data, speedTempFrame()...)
	data = append(data, speedTempFrame()...)
	data = append(data, testutil.EncodePacket(2, 1, 0x0200, testutil.LE16(7))...)
	data = append(data, speedTempFrame()...)

	var out bytes.Buffer
	summary, err := Convert(context.Background(), data, SingleSink(&out), opts)
	require.NoError(t, err)
	require.Equal(t, 4, summary.FramesSeen)
	// The late field's value is dropped, and the summary says so.
	require.Equal(t, 1, summary.FieldsDropped)

	lines := bytes.Split(bytes.TrimRight(out.Bytes(), "\n"), []byte("\n"))
	require.Equal(t, "Datum\tspeed [rpm]\ttemp [°C]", string(lines[0]))
	for _, line := range lines[1:] {
		require.Equal(t, 3, len(bytes.Split(line, []byte("\t"))), "row %q", line)
	}
}

func TestConvertDatagramCounted(t *testing.T) {
	var data []byte
	data = append(data, speedTempFrame()...)
	data = append(data, testutil.EncodeDatagram(0, 1, 0x0300, 4, 0xAB)...)
	data = append(data, speedTempFrame()...)

	var out bytes.Buffer
	summary, err := Convert(context.Background(), data, SingleSink(&out), testOptions())
	require.NoError(t, err)
	require.Equal(t, 3, summary.FramesSeen)
	require.Equal(t, 1, summary.FramesUnrecognized)
	require.Equal(t, 2, summary.Records)
}

func TestConvertPerPairSinks(t *testing.T) {
	table := testTable()
	table.Register(spec.PacketSpec{
		Key:  spec.Key{Source: 3, Destination: 2, Command: 0x0100},
		Name: "second device",
		Fields: []spec.FieldDescriptor{
			{Label: "flow", Offset: 0, Width: 2, Factor: 1, Precision: 0, Unit: "l/h"},
		},
	})
	opts := testOptions()
	opts.Table = table

	var data []byte
	for i := 0; i < 2; i++ {
		data = append(data, speedTempFrame()...)
		data = append(data, testutil.EncodePacket(2, 3, 0x0100, testutil.LE16(300))...)
	}

	outs := make(map[Pair]*bytes.Buffer)
	sink := func(pair Pair, _ *Schema) (io.WriteCloser, error) {
		buf := &bytes.Buffer{}
		outs[pair] = buf
		return nopCloser{buf}, nil
	}
	summary, err := Convert(context.Background(), data, sink, opts)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Records)
	require.Len(t, outs, 2)
	require.Contains(t, outs[Pair{Source: 1, Destination: 2}].String(), "speed [rpm]")
	require.Contains(t, outs[Pair{Source: 3, Destination: 2}].String(), "flow [l/h]")
}

func TestDecodeHexBuiltin(t *testing.T) {
	payload := append(testutil.LE16(215), testutil.LE16(452)...) // 21.5 °C, 45.2 °C
	raw := testutil.EncodePacket(0x0010, 0x7E11, 0x0100, payload)

	result, err := DecodeHex(hex.EncodeToString(raw), nil)
	require.NoError(t, err)
	require.Equal(t, "DeltaSol MX [Regler]", result.Packet)
	require.NotEmpty(t, result.Fields)
	require.Equal(t, "Temperatur Sensor 1", result.Fields[0].Label)
	require.InDelta(t, 21.5, result.Fields[0].Value, 1e-9)
}

func TestDecodeHexCleansInput(t *testing.T) {
	raw := testutil.EncodePacket(2, 1, 0x0100, []byte{1, 2, 3, 4})
	spaced := " |" + hex.EncodeToString(raw[:4]) + "_ " + hex.EncodeToString(raw[4:]) + "| "
	result, err := DecodeHex(spaced, testTable())
	require.NoError(t, err)
	require.Equal(t, uint16(1), result.Frame.Source)

	_, err = DecodeHex("ABC", testTable())
	require.Error(t, err)
}
