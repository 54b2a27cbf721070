//go:build tinygo

// Command application is stage-2: the firmware that runs out of whichever
// slot the bootloader chose. Besides whatever sensor/display tasks a full
// build adds (out of scope here), it is responsible for two
// things this subsystem owns: completing the trial-boot handshake (stamp
// update_valid and commit, or fall back, depending on self-test) and
// running the update manager's TCP listener every scheduler tick.
package main

import (
	"log/slog"
	"time"

	"machine"

	"aqmon/fieldupdate/config"
	"aqmon/fieldupdate/internal/bootrecord"
	"aqmon/fieldupdate/internal/broadcast"
	"aqmon/fieldupdate/internal/devicelog"
	"aqmon/fieldupdate/internal/flashio"
	"aqmon/fieldupdate/internal/handshake"
	"aqmon/fieldupdate/internal/lastcause"
	"aqmon/fieldupdate/internal/slot"
	"aqmon/fieldupdate/internal/updatemgr"
	"aqmon/fieldupdate/version"
)

// selfSlotName is injected at build time via -ldflags -X, one of "SLOT0"/
// "SLOT1" matching which slot this particular build is linked to run
// from (the same binary source is built twice, once per slot, exactly
// like two images packed into the CPIO release artifact). Must not have
// a default value baked in any more than version.Version does.
var selfSlotName string

// netStack is supplied by board support code outside this subsystem: the
// NIC driver is an external collaborator treated the same way as the
// sensor drivers, so nothing here constructs one. A real board's
// main package overrides this before calling run.
var netStack = func() (Stack, error) {
	return nil, errNoNIC
}

type noNIC string

func (e noNIC) Error() string { return string(e) }

const errNoNIC = noNIC("application: no network stack wired for this board")

func main() {
	ring := devicelog.Ring{}
	text := slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(devicelog.New(text, &ring))

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 8000})
	machine.Watchdog.Start()
	logger.Info("init:watchdog-started")

	hw := flashio.NewHW(machine.Serial)
	crc := flashio.HWCRC32{}
	flags := handshake.NewRAM()

	record, ok := bootrecord.Read(hw, crc)
	if !ok {
		record = bootrecord.Default()
	}

	self, parsedOK := slot.Parse(selfSlotName)
	if !parsedOK {
		self = slot.A
	}

	if self != record.ActiveSlot {
		// The bootloader booted us here without persisting (a trial of a
		// freshly written image): we are the "new" image proving itself.
		runTrialSelfTest(logger, flags)
		// Either branch of runTrialSelfTest resets; this point is
		// unreachable, present only so the compiler sees main() return.
		return
	}

	logger.Info("init:normal-boot",
		slog.String("slot", self.String()),
		slog.String("version", version.Version),
		slog.String("reset_reason", resetReasonString(lastcause.NewRAM().Get())),
	)

	stack, err := netStack()
	if err != nil {
		logger.Error("net:unavailable", slog.String("err", err.Error()))
		runScheduler(logger, record, hw, crc, flags, nil)
		return
	}
	runScheduler(logger, record, hw, crc, flags, stack)
}

// runTrialSelfTest stands in for the sensor/peripheral self-test a full
// build would run before trusting a freshly written image (sensor tasks
// are out of scope here; this always passes). On
// success it stamps update_valid and resets so the chooser observes
// (pending, valid, SoftwareReset) and commits the swap; on failure it
// resets without setting update_valid so the next boot falls back to the
// previously active slot untouched.
func runTrialSelfTest(logger *slog.Logger, flags handshake.Flags) {
	logger.Warn("trial:self-test-start")
	if selfTestPasses() {
		logger.Info("trial:self-test-passed")
		flags.SetPending()
		flags.SetValid()
	} else {
		logger.Error("trial:self-test-failed")
	}
	softReset()
}

func selfTestPasses() bool {
	return true
}

func runScheduler(logger *slog.Logger, record bootrecord.Record, hw *flashio.HW, crc flashio.CRC32, flags handshake.Flags, stack Stack) {
	var rxBuf [1200]byte
	var txBuf [512]byte

	static := updatemgr.DeviceInfo{
		ProtocolVersion:    1,
		FirmwareVersion:    version.Version,
		DeviceID:           "aqmon-fieldupdate",
		DeviceSerialNumber: version.GitSHA,
		MACAddress:         "",
		ResetReason:        resetReasonString(lastcause.NewRAM().Get()),
		BuiltTimeUTC:       version.BuildDate,
		GitCommit:          version.GitSHA,
	}

	dev := newDevice(hw, crc, flags, record, static)
	var socket Socket = noopSocket{}
	if stack != nil {
		socket = newTCPSocket(stack, config.ListeningPort(), rxBuf[:], txBuf[:])
	}
	mgr := updatemgr.New(socket, dev, logProgress{logger: logger})

	pollInterval := config.UpdateManagerPollInterval()
	var seq uint32
	for {
		machine.Watchdog.Update()
		mgr.Update()
		seq = tickBroadcast(seq, crc)
		time.Sleep(pollInterval)
	}
}

// tickBroadcast periodically encodes a broadcast envelope. Sending it over
// UDP is left unimplemented: the payload contents are out of scope and no
// grounded lneto UDP call exists to send it over, so this function stops
// at producing bytes a board-specific sender would transmit.
func tickBroadcast(seq uint32, crc flashio.CRC32) uint32 {
	env := broadcast.Envelope{Sequence: seq}
	_ = env.Encode(crc)
	return seq + 1
}

// Socket is the subset of updatemgr.Socket the scheduler loop depends on
// directly (so a nil network stack can still run the loop harmlessly via
// noopSocket).
type Socket = updatemgr.Socket

// noopSocket lets the scheduler loop run even when no network stack was
// available, rather than special-casing a nil *Manager.
type noopSocket struct{}

func (noopSocket) Listen() error       { return nil }
func (noopSocket) Ready() bool         { return false }
func (noopSocket) PeerGone() bool      { return false }
func (noopSocket) Peek(int) []byte     { return nil }
func (noopSocket) Discard(int)         {}
func (noopSocket) Write([]byte) (int, error) { return 0, nil }
func (noopSocket) Close() error        { return nil }
func (noopSocket) Abort()              {}
