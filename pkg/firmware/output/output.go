// Package output formats and writes the firmware's task-output sentences:
// the per-epoch raw-measurement report and the per-symbol decoded-data
// report, in the fixed "$P..." text formats the original firmware writes
// to a UART stream. Transport is any io.Writer — go.bug.st/serial for a
// real target, a file or bytes.Buffer for tests — gated by an open/closed
// flag so a port with nothing attached yet silently drops output instead
// of writing to a nil writer.
package output

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/globsky/greta-oto/pkg/firmware/channel"
	"github.com/globsky/greta-oto/pkg/firmware/rtime"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
)

// timeQualityCodes maps rtime.Quality to the single letter $PMSRE reports,
// in ladder order: Unknown, ExtSet, Coarse, Keep, Accurate.
const timeQualityCodes = "UECKA"

// ChannelRecord is one channel's measurement contribution to a $PBMSR line.
type ChannelRecord struct {
	channel.Measurement
	Signal       signal.ID
	Stage        channel.Stage
	CN0          int
	TrackingTime int
}

// MeasurementEpoch is everything one measurement epoch's $PMSRP/$PBMSR.../
// $PMSRE report needs.
type MeasurementEpoch struct {
	ChannelMask uint32
	TickCount   int
	IntervalMs  int
	ClockAdjust int
	Channels    [32]ChannelRecord
	Time        rtime.Info
}

// DataSymbol is one channel's decoded-data-symbol report for $PDATA.
type DataSymbol struct {
	LogicChannel int
	Signal       signal.ID
	SymbolIndex  int
	TickCount    int
	DataStream   uint32
}

// Port is a task-output stream, mirroring PortOpened/WriteStreamPort's
// open gate.
type Port struct {
	w    io.Writer
	Open bool
}

// NewPort wraps w as an open port.
func NewPort(w io.Writer) *Port { return &Port{w: w, Open: true} }

// OpenSerialPort opens path (e.g. "/dev/ttyUSB0") at baud, 8 data bits, one
// stop bit, no parity, and wraps it as an open Port.
func OpenSerialPort(path string, baud int) (*Port, error) {
	mode := &serial.Mode{BaudRate: baud, DataBits: 8, StopBits: serial.OneStopBit, Parity: serial.NoParity}
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return NewPort(p), nil
}

// Close marks the port closed and, if its writer is also an io.Closer,
// closes it.
func (p *Port) Close() error {
	if p == nil {
		return nil
	}
	p.Open = false
	if c, ok := p.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Port) write(logger logrus.FieldLogger, line string) {
	if p == nil || !p.Open || p.w == nil {
		return
	}
	if _, err := io.WriteString(p.w, line); err != nil && logger != nil {
		logger.WithError(err).Warn("output port write failed")
	}
}

// Recorder writes measurement and decoded-data reports to their own ports,
// matching MeasPrintTask/BasebandDataOutput writing to
// OutputBasebandMeasPort/OutputBasebandDataPort.
type Recorder struct {
	MeasPort *Port
	DataPort *Port
	Logger   logrus.FieldLogger
}

// WriteMeasurements formats and writes one epoch's $PMSRP header, one
// $PBMSR line per masked channel, and the $PMSRE trailer.
func (r *Recorder) WriteMeasurements(epoch MeasurementEpoch) {
	if r.MeasPort == nil || !r.MeasPort.Open {
		return
	}

	r.MeasPort.write(r.Logger, fmt.Sprintf("$PMSRP,%d,%d,%d,%d\r\n",
		bits.OnesCount32(epoch.ChannelMask), epoch.TickCount, epoch.IntervalMs, epoch.ClockAdjust))

	for i := 0; i < 32; i++ {
		if epoch.ChannelMask&(uint32(1)<<uint(i)) == 0 {
			continue
		}
		c := epoch.Channels[i]
		r.MeasPort.write(r.Logger, fmt.Sprintf("$PBMSR,%2d,%2d,%2d,%10d,%10d,%10d,%5d,%10d,%5d,%9d,%8x,%4d,%8d\r\n",
			c.ChannelLogic, c.Signal.Svid, int(c.Signal.Band),
			c.CarrierFreq, c.CarrierPhase, c.CarrierCount, c.CodeCount, c.CodePhase, 2046,
			c.WeekMsCount, int(c.Stage), c.CN0, c.TrackingTime))
	}

	q := int(epoch.Time.Quality)
	if q < 0 || q >= len(timeQualityCodes) {
		q = 0
	}
	r.MeasPort.write(r.Logger, fmt.Sprintf("$PMSRE,%c,%d,%d\r\n",
		timeQualityCodes[q], epoch.Time.GpsMsCount, epoch.Time.BdsMsCount))
}

// WriteDataSymbol formats and writes one channel's decoded-data-symbol
// report.
func (r *Recorder) WriteDataSymbol(sym DataSymbol) {
	if r.DataPort == nil || !r.DataPort.Open {
		return
	}
	r.DataPort.write(r.Logger, fmt.Sprintf("$PDATA,%2d,%2d,%2d,%5d,%10d,%08x\r\n",
		sym.LogicChannel, sym.Signal.Svid, int(sym.Signal.Band),
		sym.SymbolIndex, sym.TickCount, sym.DataStream))
}
