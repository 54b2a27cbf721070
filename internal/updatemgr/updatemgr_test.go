package updatemgr

import (
	"encoding/binary"
	"testing"

	"aqmon/fieldupdate/internal/protocol"
	"aqmon/fieldupdate/internal/slot"
)

type fakeSocket struct {
	ready    bool
	peerGone bool
	rx       []byte
	tx       []byte
	closed   bool
	aborted  bool
	listens  int
}

func (s *fakeSocket) Listen() error { s.listens++; s.ready = true; return nil }
func (s *fakeSocket) Ready() bool   { return s.ready }
func (s *fakeSocket) PeerGone() bool { return s.peerGone }
func (s *fakeSocket) Peek(n int) []byte {
	if n > len(s.rx) {
		n = len(s.rx)
	}
	return s.rx[:n]
}
func (s *fakeSocket) Discard(n int)          { s.rx = s.rx[n:] }
func (s *fakeSocket) Write(p []byte) (int, error) { s.tx = append(s.tx, p...); return len(p), nil }
func (s *fakeSocket) Close() error           { s.closed = true; return nil }
func (s *fakeSocket) Abort()                 { s.aborted = true; s.ready = false; s.rx = nil }

func (s *fakeSocket) feed(b []byte) { s.rx = append(s.rx, b...) }

func (s *fakeSocket) takeReplyStatus(t *testing.T) protocol.StatusCode {
	t.Helper()
	if len(s.tx) < 4 {
		t.Fatalf("expected a 4-byte status reply, got %d bytes", len(s.tx))
	}
	code, _ := protocol.StatusFromLEBytes(s.tx[:4])
	s.tx = s.tx[4:]
	return code
}

type fakeDevice struct {
	info DeviceInfo

	flash map[uint32]byte

	writeErr protocol.StatusCode // Success unless overridden
	eraseErr protocol.StatusCode

	rebooted        bool
	completeAndReboot bool

	writeCalls int
}

func newFakeDevice(active slot.Slot) *fakeDevice {
	return &fakeDevice{
		info:  DeviceInfo{ActiveBootSlot: active},
		flash: make(map[uint32]byte),
	}
}

func (d *fakeDevice) Info() DeviceInfo { return d.info }
func (d *fakeDevice) PerformReboot()   { d.rebooted = true }
func (d *fakeDevice) CompleteUpdateAndPerformReboot() {
	d.rebooted = true
	d.completeAndReboot = true
}

func (d *fakeDevice) ReadMemory(r protocol.MemoryRegion) ([]byte, protocol.StatusCode) {
	out := make([]byte, r.Length)
	for i := range out {
		out[i] = d.flash[r.Address+uint32(i)]
	}
	return out, protocol.Success
}

func (d *fakeDevice) WriteMemory(r protocol.MemoryRegion, data []byte) protocol.StatusCode {
	d.writeCalls++
	if d.writeErr != 0 {
		return d.writeErr
	}
	for i, b := range data {
		d.flash[r.Address+uint32(i)] = b
	}
	return protocol.Success
}

func (d *fakeDevice) EraseMemory(r protocol.MemoryRegion) protocol.StatusCode {
	if d.eraseErr != 0 {
		return d.eraseErr
	}
	for a := r.Address; a < r.Address+r.Length; a++ {
		delete(d.flash, a)
	}
	return protocol.Success
}

func encodeCmd(cmd protocol.Command) []byte {
	b := cmd.ToLEBytes()
	return b[:]
}

func encodeCmdRegion(cmd protocol.Command, region protocol.MemoryRegion) []byte {
	c := cmd.ToLEBytes()
	r := region.ToLEBytes()
	return append(append([]byte{}, c[:]...), r[:]...)
}

func uint32LE(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func TestHappyPathUpdate(t *testing.T) {
	sock := &fakeSocket{ready: true}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	inactive := slot.B
	eraseReq := protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: inactive.Size()}
	sock.feed(encodeCmdRegion(protocol.EraseMemory, eraseReq))
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.Success {
		t.Fatalf("erase reply = %v, want Success", got)
	}

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	writeReq := protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: uint32(len(payload))}
	sock.feed(encodeCmdRegion(protocol.WriteMemory, writeReq))
	sock.feed(payload)
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.Success {
		t.Fatalf("write reply = %v, want Success", got)
	}
	if m.BytesWritten() != len(payload) {
		t.Fatalf("BytesWritten() = %d, want %d", m.BytesWritten(), len(payload))
	}

	readReq := protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: uint32(len(payload))}
	sock.feed(encodeCmdRegion(protocol.ReadMemory, readReq))
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.Success {
		t.Fatalf("read reply = %v, want Success", got)
	}
	if string(sock.tx) != string(payload) {
		t.Fatal("read-back payload does not match what was written")
	}
	sock.tx = nil

	sock.feed(encodeCmd(protocol.CompleteAndReboot))
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.Success {
		t.Fatalf("complete reply = %v, want Success", got)
	}
	if !m.UpdateComplete() {
		t.Fatal("UpdateComplete() = false after CompleteAndReboot with an in-progress write")
	}

	for i := 0; i < ticksToClose; i++ {
		m.Update()
	}
	if !sock.closed {
		t.Fatal("socket was not closed at ticksToClose")
	}
	for !dev.completeAndReboot {
		m.Update()
	}
	if !dev.completeAndReboot {
		t.Fatal("CompleteUpdateAndPerformReboot was never invoked")
	}
}

func TestPartialWriteResilience(t *testing.T) {
	sock := &fakeSocket{ready: true}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	inactive := slot.B
	region := protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: 1024}
	sock.feed(encodeCmdRegion(protocol.WriteMemory, region))

	full := make([]byte, 1024)
	for i := range full {
		full[i] = byte(i)
	}

	sock.feed(full[:256])
	m.Update() // dispatch + drain 256
	if len(sock.tx) != 0 {
		t.Fatalf("got a reply after a partial write, want none yet: %v", sock.tx)
	}
	if m.BytesWritten() != 256 {
		t.Fatalf("BytesWritten() = %d, want 256", m.BytesWritten())
	}

	sock.feed(full[256:768])
	m.Update()
	if len(sock.tx) != 0 {
		t.Fatal("got a reply before the write region was exhausted")
	}
	if m.BytesWritten() != 768 {
		t.Fatalf("BytesWritten() = %d, want 768", m.BytesWritten())
	}

	sock.feed(full[768:])
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.Success {
		t.Fatalf("final reply = %v, want Success", got)
	}
	if m.BytesWritten() != 1024 {
		t.Fatalf("BytesWritten() = %d, want 1024", m.BytesWritten())
	}
	for a := inactive.BaseAddress(); a < inactive.BaseAddress()+1024; a++ {
		if dev.flash[a] != full[a-inactive.BaseAddress()] {
			t.Fatalf("flash[%d] = %d, want %d", a, dev.flash[a], full[a-inactive.BaseAddress()])
		}
	}
}

func TestAbortedCommitViaInfo(t *testing.T) {
	sock := &fakeSocket{ready: true}
	dev := newFakeDevice(slot.A)
	notified := []ProgressStatus{}
	obsFn := progressFunc(func(s ProgressStatus, n int) { notified = append(notified, s) })
	m := New(sock, dev, obsFn)

	inactive := slot.B
	region := protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: 256}
	payload := make([]byte, 256)
	sock.feed(encodeCmdRegion(protocol.WriteMemory, region))
	sock.feed(payload)
	m.Update()
	sock.takeReplyStatus(t)
	if !m.UpdateInProgress() {
		t.Fatal("UpdateInProgress() = false after an accepted WriteMemory")
	}

	sock.feed(encodeCmd(protocol.Info))
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.Success {
		t.Fatalf("info reply = %v, want Success", got)
	}
	if len(sock.tx) == 0 || sock.tx[len(sock.tx)-1] != '\n' {
		t.Fatal("info body does not end with a newline")
	}
	if !sock.closed {
		t.Fatal("socket was not closed after Info")
	}
	if m.UpdateInProgress() {
		t.Fatal("UpdateInProgress() = true after Info aborted the session")
	}
	if m.BytesWritten() != 0 {
		t.Fatalf("BytesWritten() = %d, want 0 after abort", m.BytesWritten())
	}

	foundAborted := false
	for _, s := range notified {
		if s == Aborted {
			foundAborted = true
		}
	}
	if !foundAborted {
		t.Fatal("no Aborted progress notification was delivered")
	}
}

func TestWriteToActiveSlotIsInvalidAddress(t *testing.T) {
	sock := &fakeSocket{ready: true}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	region := protocol.MemoryRegion{Address: slot.A.BaseAddress(), Length: 64}
	sock.feed(encodeCmdRegion(protocol.WriteMemory, region))
	m.Update()

	if got := sock.takeReplyStatus(t); got != protocol.InvalidAddress {
		t.Fatalf("reply = %v, want InvalidAddress", got)
	}
	if m.UpdateInProgress() {
		t.Fatal("UpdateInProgress() = true after a rejected write")
	}
	if sock.aborted || sock.closed {
		t.Fatal("connection was torn down after a recoverable protocol error")
	}
}

func TestLengthViolations(t *testing.T) {
	inactive := slot.B
	tests := []struct {
		name   string
		length uint32
		want   protocol.StatusCode
	}{
		{"too long", 1025, protocol.LengthTooLong},
		{"not multiple of 4", 6, protocol.LengthNotMultiple4},
		{"zero", 0, protocol.DataLengthIncorrect},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sock := &fakeSocket{ready: true}
			dev := newFakeDevice(slot.A)
			m := New(sock, dev, nil)

			region := protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: tc.length}
			sock.feed(encodeCmdRegion(protocol.WriteMemory, region))
			m.Update()

			if got := sock.takeReplyStatus(t); got != tc.want {
				t.Fatalf("reply = %v, want %v", got, tc.want)
			}
			if sock.aborted || sock.closed {
				t.Fatal("connection was torn down after a length violation")
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	sock := &fakeSocket{ready: true}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	sock.feed(uint32LE(9999))
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.UnknownCommand {
		t.Fatalf("reply = %v, want UnknownCommand", got)
	}
}

func TestDispatchWaitsForFullRegion(t *testing.T) {
	sock := &fakeSocket{ready: true}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	cmd := protocol.WriteMemory.ToLEBytes()
	sock.feed(cmd[:])
	sock.feed([]byte{1, 2, 3}) // only 3 of the 8 region bytes
	m.Update()
	if len(sock.tx) != 0 {
		t.Fatal("dispatched a WriteMemory before its region was fully buffered")
	}
}

func TestNotReadyTriggersListen(t *testing.T) {
	sock := &fakeSocket{ready: false}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	m.Update()
	if sock.listens != 1 {
		t.Fatalf("Listen called %d times, want 1", sock.listens)
	}
}

func TestPeerGoneAborts(t *testing.T) {
	sock := &fakeSocket{ready: true, peerGone: true}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	m.Update()
	if !sock.aborted {
		t.Fatal("a half-closed peer did not trigger Abort")
	}
}

func TestEraseMustExactlyMatchInactiveSlot(t *testing.T) {
	sock := &fakeSocket{ready: true}
	dev := newFakeDevice(slot.A)
	m := New(sock, dev, nil)

	inactive := slot.B
	region := protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: inactive.Size() - 4}
	sock.feed(encodeCmdRegion(protocol.EraseMemory, region))
	m.Update()
	if got := sock.takeReplyStatus(t); got != protocol.InvalidAddress {
		t.Fatalf("reply = %v, want InvalidAddress for an undersized erase", got)
	}
}

type progressFunc func(ProgressStatus, int)

func (f progressFunc) UpdateProgressChanged(s ProgressStatus, n int) { f(s, n) }
