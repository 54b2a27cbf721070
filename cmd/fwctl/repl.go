package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// interactive runs a read-eval-print loop over stdin: a bufio.Scanner loop
// ending on "quit"/"exit", dispatching each line to this protocol's
// one-shot commands. Every line reconnects, since internal/updatemgr
// closes the connection after Info and arms a reboot after
// CompleteAndReboot, so there is no long-lived session to keep open
// between commands.
func interactive(addr string, timeout time.Duration, tokenFlag string) error {
	fmt.Printf("fwctl interactive session: %s\n", addr)
	fmt.Println("commands: info | read <addr> <len> | erase | complete | push <firmware.elf> | quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("fwctl> ")
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}

		if isMutating(cmd) {
			if err := checkToken(tokenFlag); err != nil {
				fmt.Fprintf(os.Stderr, "fwctl: %v\n", err)
				continue
			}
		}

		var err error
		switch cmd {
		case "info":
			err = cmdInfo(addr, timeout)
		case "read":
			err = cmdRead(addr, timeout, args)
		case "erase":
			err = cmdErase(addr, timeout)
		case "complete":
			err = cmdComplete(addr, timeout)
		case "push":
			err = cmdPush(addr, timeout, args)
		default:
			fmt.Printf("unknown command %q\n", cmd)
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "fwctl: %v\n", err)
		}
	}
}
