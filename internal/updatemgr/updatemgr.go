// Package updatemgr implements the update manager (C5): a single TCP
// listener driven from the application's cooperative scheduler, one tick at
// a time, that services the device control protocol (internal/protocol) to
// receive a new firmware image into the inactive slot, read it back for
// verification, and arm a commit-and-reboot.
//
// Update never blocks and never suspends: each call does at most one unit
// of work (drain a bit of an in-progress write, or dispatch one complete
// command) and returns, matching the host scheduler's requirement that a
// spawned task run to completion without a suspension point.
package updatemgr

import (
	"aqmon/fieldupdate/internal/protocol"
	"aqmon/fieldupdate/internal/slot"
)

// DefaultPort is the control protocol's default listening port.
const DefaultPort = 32101

// ticksToReboot/ticksToClose implement an ack-then-drain indirection:
// CompleteAndReboot arms a countdown so the socket can be closed (letting
// the client observe EOF) before the reboot call actually fires.
const (
	ticksToReboot = 10
	ticksToClose  = ticksToReboot / 2
)

// ProgressStatus is the status argument delivered to a ProgressObserver.
type ProgressStatus int

const (
	InProgress ProgressStatus = iota
	Complete
	Verifying
	Aborted
)

func (s ProgressStatus) String() string {
	switch s {
	case InProgress:
		return "InProgress"
	case Complete:
		return "Complete"
	case Verifying:
		return "Verifying"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// DeviceInfo is the content of the Info response, JSON-encoded by
// (*Manager).handleInfo via the hand-rolled writer in json.go.
type DeviceInfo struct {
	ProtocolVersion    int
	FirmwareVersion    string
	DeviceID           string
	DeviceSerialNumber string
	MACAddress         string
	ActiveBootSlot     slot.Slot
	ResetReason        string
	BuiltTimeUTC       string
	GitCommit          string
}

// Device is the capability the update manager drives all flash and reboot
// operations through. Address validation, alignment against the inactive
// slot, and flash-operation errors are this implementor's responsibility;
// the manager's own checks (see checkRegion) are a cheap pre-filter only.
type Device interface {
	Info() DeviceInfo
	PerformReboot()
	CompleteUpdateAndPerformReboot()
	ReadMemory(r protocol.MemoryRegion) ([]byte, protocol.StatusCode)
	WriteMemory(r protocol.MemoryRegion, data []byte) protocol.StatusCode
	EraseMemory(r protocol.MemoryRegion) protocol.StatusCode
}

// ProgressObserver receives update-progress notifications. A Device may
// additionally implement this interface; if it does, Manager delivers
// update_progress_changed calls to it.
type ProgressObserver interface {
	UpdateProgressChanged(status ProgressStatus, bytesWritten int)
}

// Socket is the non-blocking transport the manager drives. It abstracts
// github.com/soypat/lneto/tcp.Conn behind peek/discard semantics so the
// manager can decide how many bytes it needs before consuming any of them,
// and so it can be exercised by tests without a real TCP/IP stack.
type Socket interface {
	// Listen (re)establishes the listening socket if it is not already
	// open or connected. Safe to call every tick.
	Listen() error
	// Ready reports whether a peer is connected and synchronized.
	Ready() bool
	// PeerGone reports a receive-half-closed, send-half-open connection:
	// the peer has vanished without a clean close.
	PeerGone() bool
	// Peek returns up to n bytes currently buffered for receipt, without
	// consuming them. It may return fewer than n bytes.
	Peek(n int) []byte
	// Discard drops n bytes previously returned by Peek from the receive
	// buffer.
	Discard(n int)
	// Write enqueues bytes for transmission.
	Write(p []byte) (int, error)
	// Close half-closes the connection so the peer observes EOF.
	Close() error
	// Abort sends an RST-equivalent and resets all connection state.
	Abort()
}

// Manager holds the update manager's state machine. It is owned by a
// single scheduler task; nothing here is
// safe for concurrent use from more than one goroutine.
type Manager struct {
	socket Socket
	device Device
	obs    ProgressObserver

	open bool

	updateInProgress bool
	updateComplete   bool

	writePending   bool
	writeRemaining protocol.MemoryRegion

	bytesWritten int

	hasLastCommand bool
	lastCommand    protocol.Command

	rebootArmed      bool
	ticksUntilReboot int
}

// New constructs a Manager bound to socket and device. obs may be nil; if
// it is, and device implements ProgressObserver, device receives the
// progress notifications instead.
func New(socket Socket, device Device, obs ProgressObserver) *Manager {
	if obs == nil {
		if o, ok := device.(ProgressObserver); ok {
			obs = o
		}
	}
	return &Manager{socket: socket, device: device, obs: obs}
}

// BytesWritten returns the number of payload bytes programmed to flash in
// the current update session; it resets to 0 on AbortInProgress.
func (m *Manager) BytesWritten() int { return m.bytesWritten }

// UpdateInProgress reports whether a write has occurred since the last
// reset or abort.
func (m *Manager) UpdateInProgress() bool { return m.updateInProgress }

// UpdateComplete reports whether CompleteAndReboot has been accepted.
func (m *Manager) UpdateComplete() bool { return m.updateComplete }

// Update performs one tick's worth of work: the reboot countdown, socket
// housekeeping, draining a pending write, or dispatching exactly one
// complete command. It never blocks.
func (m *Manager) Update() {
	if m.rebootArmed {
		m.tickReboot()
		return
	}

	if !m.socket.Ready() {
		m.socket.Listen()
		return
	}
	if m.socket.PeerGone() {
		m.abortConnection()
		return
	}

	if m.writePending {
		m.drainWrite()
		return
	}

	m.tryDispatch()
}

func (m *Manager) tickReboot() {
	m.ticksUntilReboot--
	switch {
	case m.ticksUntilReboot == ticksToClose:
		m.socket.Close()
	case m.ticksUntilReboot <= 0:
		if m.updateComplete {
			m.device.CompleteUpdateAndPerformReboot()
		} else {
			m.device.PerformReboot()
		}
	}
}

// abortConnection tears down a dead connection and resets the in-progress
// update state through AbortInProgress; the Aborted notification is sent
// only if an update was in progress when the peer disappeared.
func (m *Manager) abortConnection() {
	wasInProgress := m.updateInProgress
	m.AbortInProgress()
	m.socket.Abort()
	if wasInProgress {
		m.notify(Aborted)
	}
}

// AbortInProgress clears update_in_progress, write_in_progress,
// bytes_written, and last_command. It deliberately does NOT clear
// update_complete or ticks_until_reboot: a commit that has already been
// accepted must still reboot even if the peer disappears afterward.
func (m *Manager) AbortInProgress() {
	m.updateInProgress = false
	m.writePending = false
	m.writeRemaining = protocol.MemoryRegion{}
	m.bytesWritten = 0
	m.hasLastCommand = false
}

func (m *Manager) notify(status ProgressStatus) {
	if m.obs != nil {
		m.obs.UpdateProgressChanged(status, m.bytesWritten)
	}
}

// drainWrite programs whatever aligned prefix of write_remaining is
// currently buffered, shrinking the remaining region; it replies Success
// only once the region is fully consumed.
func (m *Manager) drainWrite() {
	avail := m.socket.Peek(int(m.writeRemaining.Length))
	take := (len(avail) / 4) * 4
	if take == 0 {
		return
	}
	if uint32(take) > m.writeRemaining.Length {
		take = int(m.writeRemaining.Length)
	}

	status := m.device.WriteMemory(protocol.MemoryRegion{
		Address: m.writeRemaining.Address,
		Length:  uint32(take),
	}, avail[:take])
	m.socket.Discard(take)

	if status != protocol.Success {
		m.replyStatus(status)
		m.AbortInProgress()
		m.notify(Aborted)
		return
	}

	m.bytesWritten += take
	m.writeRemaining.Address += uint32(take)
	m.writeRemaining.Length -= uint32(take)

	if m.writeRemaining.Length == 0 {
		m.writePending = false
		m.replyStatus(protocol.Success)
		m.notify(InProgress)
	}
}

// tryDispatch peeks an opcode (and, if the opcode carries a trailing
// region, the region too) and dispatches exactly one command once enough
// bytes are buffered. If fewer bytes are buffered than the command needs,
// it returns without consuming anything, leaving the decision to the next
// tick.
func (m *Manager) tryDispatch() {
	head := m.socket.Peek(4)
	if len(head) < 4 {
		return
	}
	cmd, _ := protocol.FromLEBytes(head)

	need := 4
	if cmd.HasRegion() {
		need = 12
	}
	full := m.socket.Peek(need)
	if len(full) < need {
		return
	}

	m.trackVerifyingTransition(cmd)

	var region protocol.MemoryRegion
	if cmd.HasRegion() {
		region, _ = protocol.RegionFromLEBytes(full[4:12])
	}

	m.socket.Discard(need)
	m.hasLastCommand = true
	m.lastCommand = cmd

	switch cmd {
	case protocol.Info:
		m.handleInfo()
	case protocol.ReadMemory:
		m.handleRead(region)
	case protocol.WriteMemory:
		m.handleWrite(region)
	case protocol.EraseMemory:
		m.handleErase(region)
	case protocol.CompleteAndReboot:
		m.handleComplete()
	default:
		m.replyStatus(protocol.UnknownCommand)
	}
}

// trackVerifyingTransition infers the Verifying progress status from a
// WriteMemory -> ReadMemory edge.
func (m *Manager) trackVerifyingTransition(cmd protocol.Command) {
	if m.hasLastCommand && m.lastCommand == protocol.WriteMemory && cmd == protocol.ReadMemory {
		m.notify(Verifying)
	}
}

func (m *Manager) handleInfo() {
	// Info aborts any in-progress update before replying, then closes the
	// socket once the response has been written.
	wasInProgress := m.updateInProgress
	m.AbortInProgress()
	if wasInProgress {
		m.notify(Aborted)
	}

	body := encodeInfo(m.device.Info())
	m.replyStatus(protocol.Success)
	m.socket.Write(body)
	m.socket.Close()
}

func (m *Manager) handleRead(region protocol.MemoryRegion) {
	if status, ok := m.checkRegion(region); !ok {
		m.replyStatus(status)
		return
	}
	data, status := m.device.ReadMemory(region)
	if status != protocol.Success {
		m.replyStatus(status)
		return
	}
	m.replyStatus(protocol.Success)
	m.socket.Write(data)
}

func (m *Manager) handleWrite(region protocol.MemoryRegion) {
	if status, ok := m.checkRegion(region); !ok {
		m.replyStatus(status)
		return
	}

	m.updateInProgress = true
	m.notify(InProgress)
	m.writePending = true
	m.writeRemaining = region
	m.drainWrite()
}

func (m *Manager) handleErase(region protocol.MemoryRegion) {
	inactive := m.device.Info().ActiveBootSlot.Other()
	if region.Address != inactive.BaseAddress() || region.Length != inactive.Size() {
		m.replyStatus(protocol.InvalidAddress)
		return
	}
	status := m.device.EraseMemory(region)
	m.replyStatus(status)
}

func (m *Manager) handleComplete() {
	m.rebootArmed = true
	m.ticksUntilReboot = ticksToReboot
	if m.updateInProgress {
		m.updateComplete = true
	}
	m.replyStatus(protocol.Success)
	m.notify(Complete)
}

// checkRegion is the manager's cheap pre-filter: protocol-level length
// rules plus containment in the inactive slot. It does not touch flash;
// authoritative validation still happens inside Device's own methods.
func (m *Manager) checkRegion(region protocol.MemoryRegion) (protocol.StatusCode, bool) {
	if status, ok := region.CheckLength(); !ok {
		return status, false
	}
	inactive := m.device.Info().ActiveBootSlot.Other()
	if !inactive.Contains(region.Address) || !inactive.Contains(region.Address+region.Length-1) {
		return protocol.InvalidAddress, false
	}
	return protocol.Success, true
}

func (m *Manager) replyStatus(status protocol.StatusCode) {
	enc := status.ToLEBytes()
	m.socket.Write(enc[:])
}
