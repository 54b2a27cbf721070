// Command fwctl is the host-side counterpart to cmd/application's update
// manager: it dials the device control protocol (internal/protocol) over
// TCP, drives info/read/write/erase/complete commands, and packs/unpacks
// the CPIO release artifact containing the two slot images. Its command
// dispatch and authentication prompt trade a line-oriented telnet console
// for this subsystem's fixed-width binary protocol.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/term"

	"aqmon/fieldupdate/credentials"
	"aqmon/fieldupdate/internal/protocol"
	"aqmon/fieldupdate/internal/slot"
	"aqmon/fieldupdate/internal/updatemgr"
)

const defaultTimeout = 10 * time.Second

func main() {
	host := flag.String("host", "", "device IP address (required)")
	port := flag.Int("port", updatemgr.DefaultPort, "device control-protocol TCP port")
	token := flag.String("token", "", "debug token (or FWCTL_TOKEN env var, or interactive prompt)")
	timeout := flag.Duration("timeout", defaultTimeout, "per-command network timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	sub, rest := args[0], args[1:]

	// pack/unpack never touch the network, so they run before -host is
	// required.
	switch sub {
	case "pack":
		if len(rest) != 3 {
			fmt.Fprintln(os.Stderr, "usage: fwctl pack <out.cpio> <slot0.elf> <slot1.elf>")
			os.Exit(1)
		}
		if err := packRelease(rest[0], rest[1], rest[2]); err != nil {
			fatal(err)
		}
		return
	case "unpack":
		if len(rest) != 2 {
			fmt.Fprintln(os.Stderr, "usage: fwctl unpack <archive.cpio> <dest-dir>")
			os.Exit(1)
		}
		if err := unpackRelease(rest[0], rest[1]); err != nil {
			fatal(err)
		}
		return
	}

	if *host == "" {
		printUsage()
		os.Exit(1)
	}
	addr := net.JoinHostPort(*host, strconv.Itoa(*port))

	if isMutating(sub) {
		if err := checkToken(*token); err != nil {
			fatal(err)
		}
	}

	var err error
	switch sub {
	case "info":
		err = cmdInfo(addr, *timeout)
	case "read":
		err = cmdRead(addr, *timeout, rest)
	case "erase":
		err = cmdErase(addr, *timeout)
	case "complete":
		err = cmdComplete(addr, *timeout)
	case "push":
		err = cmdPush(addr, *timeout, rest)
	case "interactive":
		err = interactive(addr, *timeout, *token)
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func isMutating(sub string) bool {
	switch sub {
	case "erase", "complete", "push":
		return true
	default:
		return false
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "fwctl: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("fwctl: host-side control for the dual-slot field-update subsystem")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fwctl -host <ip> [-port <n>] [-token <t>] [-timeout <d>] <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  info                        query device identity and active slot")
	fmt.Println("  read <addr> <len>           read <len> bytes at <addr> from the inactive slot")
	fmt.Println("  erase                       erase the entire inactive slot")
	fmt.Println("  complete                    arm the commit-and-reboot handshake")
	fmt.Println("  push <firmware.elf>         erase, write, verify, and commit a new image")
	fmt.Println("  interactive                 read commands from a prompt until 'quit'")
	fmt.Println()
	fmt.Println("Commands that don't need -host:")
	fmt.Println("  pack <out.cpio> <slot0.elf> <slot1.elf>   build a release artifact")
	fmt.Println("  unpack <archive.cpio> <dest-dir>          extract a release artifact")
}

// checkToken resolves the operator-supplied token (flag, then FWCTL_TOKEN,
// then an interactive masked prompt if a terminal is attached) and, when
// the build embeds a non-empty credentials.DebugToken, refuses to proceed
// on a mismatch before any mutating command reaches the wire.
func checkToken(flagValue string) error {
	want := credentials.DebugToken()
	if want == "" {
		return nil // authenticated mode disabled for this build
	}

	got := flagValue
	if got == "" {
		got = os.Getenv("FWCTL_TOKEN")
	}
	if got == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Token: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err == nil {
			got = string(b)
		}
	}

	if got != want {
		return fmt.Errorf("token mismatch: this build requires -token (or FWCTL_TOKEN)")
	}
	return nil
}

func cmdInfo(addr string, timeout time.Duration) error {
	c, err := dial(addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.Info()
	if err != nil {
		return err
	}
	fmt.Printf("protocol_version:     %d\n", info.ProtocolVersion)
	fmt.Printf("firmware_version:     %s\n", info.FirmwareVersion)
	fmt.Printf("device_id:            %s\n", info.DeviceID)
	fmt.Printf("device_serial_number: %s\n", info.DeviceSerialNumber)
	fmt.Printf("mac_address:          %s\n", info.MACAddress)
	fmt.Printf("active_boot_slot:     %s\n", info.ActiveBootSlot)
	fmt.Printf("reset_reason:         %s\n", info.ResetReason)
	fmt.Printf("built_time_utc:       %s\n", info.BuiltTimeUTC)
	fmt.Printf("git_commit:           %s\n", info.GitCommit)
	return nil
}

func cmdRead(addr string, timeout time.Duration, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: fwctl read <addr> <len>")
	}
	address, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("bad address %q: %w", args[0], err)
	}
	length, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("bad length %q: %w", args[1], err)
	}

	c, err := dial(addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	region := protocol.MemoryRegion{Address: uint32(address), Length: uint32(length)}
	data, err := c.Read(region)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

// inactiveSlotRegion queries Info to learn the active slot and returns the
// full inactive-slot region, the same computation internal/updatemgr's own
// checkRegion performs device-side.
func inactiveSlotRegion(c *client) (protocol.MemoryRegion, error) {
	info, err := c.Info()
	if err != nil {
		return protocol.MemoryRegion{}, err
	}
	active, ok := slot.Parse(info.ActiveBootSlot)
	if !ok {
		return protocol.MemoryRegion{}, fmt.Errorf("unrecognized active_boot_slot %q", info.ActiveBootSlot)
	}
	inactive := active.Other()
	return protocol.MemoryRegion{Address: inactive.BaseAddress(), Length: inactive.Size()}, nil
}

func cmdErase(addr string, timeout time.Duration) error {
	c, err := dial(addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	region, err := inactiveSlotRegion(c)
	if err != nil {
		return err
	}
	// Info closes the connection it answers on; reconnect for the erase.
	c.Close()
	c, err = dial(addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("erasing inactive slot at 0x%08x (%d bytes)...\n", region.Address, region.Length)
	if err := c.Erase(region); err != nil {
		return err
	}
	fmt.Println("erased")
	return nil
}

func cmdComplete(addr string, timeout time.Duration) error {
	c, err := dial(addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Println("arming commit-and-reboot...")
	if err := c.CompleteAndReboot(); err != nil {
		return err
	}
	fmt.Println("armed; device will reboot into the trial image shortly")
	return nil
}

// cmdPush is the one-shot erase/write/verify/commit flow: a chunk-and-verify
// loop against this protocol's region-addressed WriteMemory/ReadMemory
// commands.
func cmdPush(addr string, timeout time.Duration, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: fwctl push <firmware.elf>")
	}
	elfPath := args[0]

	infoConn, err := dial(addr, timeout)
	if err != nil {
		return err
	}
	region, err := inactiveSlotRegion(infoConn)
	infoConn.Close()
	if err != nil {
		return err
	}

	image, err := rawImageFromELF(elfPath, int(region.Length))
	if err != nil {
		return fmt.Errorf("convert %s: %w", elfPath, err)
	}
	// WriteMemory regions must have a length that is a multiple of 4
	// (protocol.MemoryRegion.CheckLength); pad the image with zero bytes up
	// to the next word boundary rather than reject an odd-sized section
	// concatenation.
	if pad := (4 - len(image)%4) % 4; pad > 0 {
		image = append(image, make([]byte, pad)...)
	}
	fmt.Printf("firmware image: %d bytes, target 0x%08x\n", len(image), region.Address)

	c, err := dial(addr, timeout)
	if err != nil {
		return err
	}
	fmt.Println("erasing inactive slot...")
	if err := c.Erase(region); err != nil {
		c.Close()
		return fmt.Errorf("erase: %w", err)
	}

	chunks := chunkRegions(region.Address, len(image))

	written := 0
	for _, chunkRegion := range chunks {
		chunk := image[written : written+int(chunkRegion.Length)]
		if err := c.Write(chunkRegion, chunk); err != nil {
			c.Close()
			return fmt.Errorf("write at offset %d: %w", written, err)
		}
		written += len(chunk)
		fmt.Printf("\r[%3d%%] %d/%d bytes", written*100/len(image), written, len(image))
	}
	fmt.Println()

	fmt.Println("verifying...")
	verified := 0
	for _, chunkRegion := range chunks {
		want := image[verified : verified+int(chunkRegion.Length)]
		got, err := c.Read(chunkRegion)
		if err != nil {
			c.Close()
			return fmt.Errorf("verify read at offset %d: %w", verified, err)
		}
		if !bytesEqual(got, want) {
			c.Close()
			return fmt.Errorf("verification mismatch at offset %d: written image does not read back identical", verified)
		}
		verified += len(want)
	}
	fmt.Println("verified")

	fmt.Println("committing and rebooting...")
	if err := c.CompleteAndReboot(); err != nil {
		c.Close()
		return err
	}
	c.Close()
	fmt.Println("done")
	return nil
}

// chunkRegions splits an n-byte image (n already a multiple of 4; see
// cmdPush's padding step) starting at base into consecutive MemoryRegion
// descriptors no larger than protocol.MaxChunkLength, matching how
// internal/updatemgr's drainWrite consumes a WriteMemory request's bytes
// off the wire.
func chunkRegions(base uint32, n int) []protocol.MemoryRegion {
	var regions []protocol.MemoryRegion
	offset := 0
	for offset < n {
		length := protocol.MaxChunkLength
		if remaining := n - offset; remaining < length {
			length = remaining
		}
		regions = append(regions, protocol.MemoryRegion{Address: base + uint32(offset), Length: uint32(length)})
		offset += length
	}
	return regions
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
