package aemgr

import (
	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/taskmgr"
)

// acqResultWords reads back one satellite's four-word AE result block:
// word 0 raw, word 1 (peak amplitude, code position, Doppler bin), word 2
// unused here, word 3 (third-peak amplitude).
func (m *Manager) acqResultWords(i int) [4]uint32 {
	var words [4]uint32
	m.HW.LoadMemory(words[:], hwio.AEConfigBase(i)+16)
	return words
}

// dopplerFromResult decodes word1's sign-extended 9-bit Doppler-bin field
// (bits 15-23) and
// converts it to an absolute Hz frequency relative to centerFreq, scaled by
// the search's Doppler-bin stride.
func dopplerFromResult(word1 uint32, centerFreq, strideInterval int) int {
	bin := int32(word1<<8) >> 23
	return centerFreq + (int(bin)*2-7)*strideInterval/16
}

// AeInterruptProc is the AE completion ISR: on every search stage but the
// last it refines the centre frequency and re-kicks AE (DoVerification); on
// the final (verify) stage it hands off to ProcessAcqResult via the
// request queue so the hand-off re-synchronises with the next TE
// interrupt.
func (m *Manager) AeInterruptProc() {
	task := m.current

	if task.SearchMode&SearchModeStageMask == SearchModeStageVerify {
		finished := task
		m.Scheduler.AddToTask(taskmgr.Request, func(interface{}) { m.ProcessAcqResult(finished) }, finished, 8)
		m.pending &^= 1 << uint(m.currentIndex)
		m.current = nil
		return
	}
	m.doVerification()
}

// doVerification reads every search candidate's peak/third-peak amplitude,
// drops any that fail the 1.5x verification ratio, refines the survivors'
// centre frequency from the acquired Doppler bin, and re-arms AE at the
// narrow single-bin verification preset.
func (m *Manager) doVerification() {
	task := m.current
	satNumber := 0

	for i := 0; i < task.AcqChNumber; i++ {
		words := m.acqResultWords(i)
		doppler := dopplerFromResult(words[1], task.SatConfig[i].CenterFreq, task.SearchConfig.StrideInterval)

		thirdPeak := words[3] >> 24
		thirdPeak += thirdPeak >> 1 // *1.5
		peak := words[1] >> 24
		if peak < thirdPeak {
			continue // search fail
		}

		task.SatConfig[satNumber].Signal = task.SatConfig[i].Signal
		task.SatConfig[satNumber].CodeSpan = task.SatConfig[i].CodeSpan
		task.SatConfig[satNumber].CenterFreq = doppler
		satNumber++
	}

	task.AcqChNumber = satNumber
	task.SearchMode = (task.SearchMode &^ SearchModeStageMask) | SearchModeStageVerify
	task.SearchConfig = &searchConfigArray[4]
	m.StartAcquisition()
}

// ProcessAcqResult is the request-queue hand-off: it reconstructs the
// elapsed time and code-phase gap between the AE latch and the current TE
// FIFO read position, applies the geometric Doppler correction and Cor4
// alignment to every surviving candidate's code phase, allocates and
// configures a tracking channel for each, publishes the updated channel
// enable mask, then resumes any pending acquire task.
func (m *Manager) ProcessAcqResult(task *Task) {
	m.current = nil

	lw := m.HW.ReadReg(hwio.RegFIFOLatchAE)
	latchRound := int(lw >> 16)
	latchAddress := int((lw>>2)&0x3fff) + latchRound*10240

	ww := m.HW.ReadReg(hwio.RegFIFOWrite)
	readRound := int(ww >> 16)
	writeAddress := int((ww >> 2) & 0x3fff)

	rw := int(m.HW.ReadReg(hwio.RegFIFORead))
	if rw > writeAddress {
		readRound--
	}
	readAddress := rw + readRound*10240

	addressGap := readAddress - latchAddress
	if addressGap < 0 {
		addressGap += (1 << 16) * 10240
	}

	timeGap := addressGap / SamplesPerMs
	addressGap %= SamplesPerMs * 20
	phaseGap := (addressGap * 1023 * 16) / SamplesPerMs

	for i := 0; i < task.AcqChNumber; i++ {
		words := m.acqResultWords(i)
		doppler := dopplerFromResult(words[1], task.SatConfig[i].CenterFreq, task.SearchConfig.StrideInterval)
		resultCodePhase := int(words[1] & 0x7fff)

		codePhase := phaseGap - (resultCodePhase-5)*8 // align peak to Cor4
		codePhase += timeGap * doppler / 96250
		if codePhase < 0 {
			codePhase += 20 * 1023 * 16
		}

		if ch := m.Pool.GetAvailableChannel(); ch != nil {
			ch.InitChannel(task.SatConfig[i].Signal)
			ch.ConfigChannel(doppler, codePhase)
		}
	}

	m.Pool.UpdateChannels()
	m.HW.WriteReg(hwio.RegTEChannelEnable, m.Pool.ChannelEnableMask())

	m.doAcqTask()
}
