//go:build pcsc

// Command she-pcsc relays SHE commands to a real smartcard over a PC/SC
// reader. Unlike cmd/shed and cmd/she-repl, which host the dispatcher
// in-process, this tool treats the dispatcher's framing as the wire
// protocol spoken to external hardware: it reads the same "<action>
// <hex-payload>" lines cmd/shed's stand-in transport accepts from stdin,
// wraps each as an APDU, and transmits it to the card, printing back
// whatever the card answers. The framing itself (2-byte big-endian action
// code, then the opcode's payload; reply is 1-byte rc then payload) is this
// core's own choice, not a SHE standard, since the transport layer is
// explicitly out of this core's scope (spec.md §1). Connection handling
// follows the teacher's pkg/ntag424/pcsc.go Connect/Transmit pattern.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ebfe/scard"
)

// conn wraps a PC/SC card connection, mirroring the teacher's Connection
// type (pkg/ntag424/pcsc.go) adapted to this core's own framing.
type conn struct {
	ctx    *scard.Context
	card   *scard.Card
	reader string
}

func connect(readerIndex int) (*conn, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("EstablishContext failed: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no readers found: %v", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
	}

	reader := readers[readerIndex]
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connect failed: %w", err)
	}

	return &conn{ctx: ctx, card: card, reader: reader}, nil
}

func (c *conn) Close() {
	if c == nil {
		return
	}
	if c.card != nil {
		_ = c.card.Disconnect(scard.LeaveCard)
	}
	if c.ctx != nil {
		_ = c.ctx.Release()
	}
}

func (c *conn) command(action uint16, payload []byte) ([]byte, error) {
	apdu := make([]byte, 0, 2+len(payload))
	apdu = append(apdu, byte(action>>8), byte(action))
	apdu = append(apdu, payload...)
	return c.card.Transmit(apdu)
}

func main() {
	readerIndex := flag.Int("reader", 0, "PC/SC reader index")
	flag.Parse()

	c, err := connect(*readerIndex)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Fprintf(os.Stderr, "she-pcsc connected to %s\n", c.reader)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		action, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			fmt.Printf("255 %s\n", hex.EncodeToString([]byte(err.Error())))
			continue
		}
		var payload []byte
		if len(fields) == 2 {
			payload, err = hex.DecodeString(fields[1])
			if err != nil {
				fmt.Printf("255 %s\n", hex.EncodeToString([]byte(err.Error())))
				continue
			}
		}
		reply, err := c.command(uint16(action), payload)
		if err != nil {
			fmt.Printf("254 %s\n", hex.EncodeToString([]byte(err.Error())))
			continue
		}
		if len(reply) < 1 {
			fmt.Println("253")
			continue
		}
		fmt.Printf("%d %s\n", reply[0], hex.EncodeToString(reply[1:]))
	}
}
