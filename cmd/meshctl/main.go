package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "localhost:9100", "Address of a meshnode debug endpoint")
	timeout := flag.Duration("timeout", 5*time.Second, "Dial and round-trip timeout")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	currentAddr := *addr
	conn, err := dial(currentAddr, *timeout)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", currentAddr, err)
	}

	fmt.Printf("meshnode debug client. Connected to %s\n", currentAddr)
	fmt.Println("Available commands: routes/subtree/parent/send <addr> <text>/use <addr>/exit")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("meshctl[%s]> ", currentAddr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <host:port>")
				continue
			}
			newConn, err := dial(args[1], *timeout)
			if err != nil {
				fmt.Printf("Failed to connect to %s: %v\n", args[1], err)
				continue
			}
			conn.Close()
			conn = newConn
			currentAddr = args[1]
			fmt.Printf("Switched connection to %s\n", currentAddr)

		case "exit", "quit":
			fmt.Println("Bye!")
			conn.Close()
			return

		default:
			reply, err := sendCommand(conn, strings.Join(args, " "), *timeout)
			if err != nil {
				fmt.Printf("command failed: %v\n", err)
				newConn, dialErr := dial(currentAddr, *timeout)
				if dialErr == nil {
					conn = newConn
				}
				continue
			}
			fmt.Println(reply)
		}
	}
}

func dial(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}

// sendCommand writes one line of the debug protocol and reads its single
// line reply. The debug server answers every request with exactly one
// line, so a single ReadString('\n') is enough.
func sendCommand(conn net.Conn, line string, timeout time.Duration) (string, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return "", err
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
