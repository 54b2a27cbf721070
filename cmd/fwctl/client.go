package main

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"aqmon/fieldupdate/internal/protocol"
)

// client is a thin synchronous wrapper over a TCP connection speaking the
// device control protocol: dial, write, read-with-deadline, framed as
// fixed-width little-endian commands and status codes.
type client struct {
	conn    net.Conn
	timeout time.Duration
}

func dial(addr string, timeout time.Duration) (*client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &client{conn: conn, timeout: timeout}, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}

func (c *client) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	got := 0
	for got < n {
		m, err := c.conn.Read(buf[got:])
		if err != nil {
			return nil, fmt.Errorf("read %d bytes (got %d): %w", n, got, err)
		}
		got += m
	}
	return buf, nil
}

func (c *client) readStatus() (protocol.StatusCode, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	status, _ := protocol.StatusFromLEBytes(b)
	return status, nil
}

func (c *client) sendCommand(cmd protocol.Command, region *protocol.MemoryRegion) error {
	opcode := cmd.ToLEBytes()
	frame := opcode[:]
	if region != nil {
		enc := region.ToLEBytes()
		frame = append(append([]byte{}, opcode[:]...), enc[:]...)
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	_, err := c.conn.Write(frame)
	return err
}

// deviceInfo mirrors internal/updatemgr.DeviceInfo's on-wire JSON shape
// (internal/updatemgr/json.go's hand-rolled writer); this side decodes with
// encoding/json since the host is under no allocation pressure.
type deviceInfo struct {
	ProtocolVersion    int    `json:"protocol_version"`
	FirmwareVersion    string `json:"firmware_version"`
	DeviceID           string `json:"device_id"`
	DeviceSerialNumber string `json:"device_serial_number"`
	MACAddress         string `json:"mac_address"`
	ActiveBootSlot     string `json:"active_boot_slot"`
	ResetReason        string `json:"reset_reason"`
	BuiltTimeUTC       string `json:"built_time_utc"`
	GitCommit          string `json:"git_commit"`
}

// Info issues the Info command. The device replies Success, then one JSON
// line, then closes the connection (internal/updatemgr's handleInfo), so
// this reads until EOF rather than a fixed length.
func (c *client) Info() (deviceInfo, error) {
	if err := c.sendCommand(protocol.Info, nil); err != nil {
		return deviceInfo{}, err
	}
	status, err := c.readStatus()
	if err != nil {
		return deviceInfo{}, err
	}
	if status != protocol.Success {
		return deviceInfo{}, fmt.Errorf("device returned %s", status)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	var body []byte
	buf := make([]byte, 512)
	for {
		n, err := c.conn.Read(buf)
		body = append(body, buf[:n]...)
		if err != nil {
			break
		}
	}

	var info deviceInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return deviceInfo{}, fmt.Errorf("decode info body %q: %w", body, err)
	}
	return info, nil
}

// Read issues a ReadMemory command and returns the region's bytes.
func (c *client) Read(region protocol.MemoryRegion) ([]byte, error) {
	if err := c.sendCommand(protocol.ReadMemory, &region); err != nil {
		return nil, err
	}
	status, err := c.readStatus()
	if err != nil {
		return nil, err
	}
	if status != protocol.Success {
		return nil, fmt.Errorf("device returned %s", status)
	}
	return c.readExact(int(region.Length))
}

// Write issues a WriteMemory command for exactly len(data) bytes (which
// must equal region.Length and must fit in one protocol.MaxChunkLength
// chunk), then streams data immediately after the region descriptor —
// internal/updatemgr's drainWrite reads the region's bytes off the same
// connection without any further framing.
func (c *client) Write(region protocol.MemoryRegion, data []byte) error {
	if int(region.Length) != len(data) {
		return fmt.Errorf("region length %d does not match data length %d", region.Length, len(data))
	}
	if err := c.sendCommand(protocol.WriteMemory, &region); err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	status, err := c.readStatus()
	if err != nil {
		return err
	}
	if status != protocol.Success {
		return fmt.Errorf("device returned %s", status)
	}
	return nil
}

// Erase issues an EraseMemory command covering the whole inactive slot.
func (c *client) Erase(region protocol.MemoryRegion) error {
	if err := c.sendCommand(protocol.EraseMemory, &region); err != nil {
		return err
	}
	status, err := c.readStatus()
	if err != nil {
		return err
	}
	if status != protocol.Success {
		return fmt.Errorf("device returned %s", status)
	}
	return nil
}

// CompleteAndReboot arms the trial-boot handshake and reboot countdown.
// The device closes the connection partway through its countdown
// (internal/updatemgr's ticksToClose), which this treats as expected
// rather than an error once the status reply has already arrived.
func (c *client) CompleteAndReboot() error {
	if err := c.sendCommand(protocol.CompleteAndReboot, nil); err != nil {
		return err
	}
	status, err := c.readStatus()
	if err != nil {
		return err
	}
	if status != protocol.Success {
		return fmt.Errorf("device returned %s", status)
	}
	return nil
}
