// Command she-repl is an interactive shell that drives the dispatcher
// in-process against a configurable keystore backend, for exercising the
// SHE command set without a real reader attached. Command structure and
// history handling follow the teacher's liner-based sloty REPL; status
// tables follow the teacher pack's go-pretty table pattern.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/peterh/liner"

	"github.com/barnettlynn/she-core/internal/dispatch"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/shectx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	backend := flag.String("keystore", "mem", "keystore backend: mem, file, or sqlite")
	dsn := flag.String("dsn", "", "keystore backend path (file/sqlite)")
	client := flag.String("client", "default", "client namespace to drive")
	flag.Parse()

	var store keystore.Store
	switch *backend {
	case "", "mem":
		store = keystore.NewMemStore()
	case "file":
		if *dsn == "" {
			return errors.New("--keystore=file requires --dsn")
		}
		store = keystore.NewFileStore(*dsn)
	case "sqlite":
		if *dsn == "" {
			return errors.New("--keystore=sqlite requires --dsn")
		}
		var err error
		store, err = keystore.OpenSQLStore(*dsn)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown keystore backend %q", *backend)
	}

	sc, err := shectx.New(*client)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	defer sc.Zeroize()

	repl := &REPL{
		d:  &dispatch.Dispatcher{Store: store, Client: *client},
		sc: sc,
	}
	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	d     *dispatch.Dispatcher
	sc    *shectx.Context
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".she_repl_history")
}

var commands = []string{
	"uid", "bootinit", "bootupdate", "bootfinish", "status",
	"loadkey", "loadplain", "export", "rndinit", "rnd",
	"dump", "help", "exit", "quit", "q",
}

func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	})

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("she-repl - client %q, session %s\n", r.d.Client, r.sc.SessionID)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("she> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "uid":
			r.cmdDispatch(sheconst.SetUID, args)
		case "bootinit":
			r.cmdDispatch(sheconst.SecureBootInit, args)
		case "bootupdate":
			r.cmdDispatch(sheconst.SecureBootUpdate, args)
		case "bootfinish":
			r.cmdDispatch(sheconst.SecureBootFinish, nil)
		case "status":
			r.cmdStatus()
		case "loadkey":
			r.cmdDispatch(sheconst.LoadKey, args)
		case "loadplain":
			r.cmdDispatch(sheconst.LoadPlainKey, args)
		case "export":
			r.cmdDispatch(sheconst.ExportRAMKey, nil)
		case "rndinit":
			r.cmdDispatch(sheconst.InitRND, nil)
		case "rnd":
			r.cmdDispatch(sheconst.RND, nil)
		case "dump":
			r.cmdDump()
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  uid <30-hex-chars>             SET_UID (15-byte UID)")
	fmt.Println("  bootinit <hex-size-or-len>     SECURE_BOOT_INIT with a 4-byte BE size")
	fmt.Println("  bootupdate <hex>               SECURE_BOOT_UPDATE with a chunk")
	fmt.Println("  bootfinish                      SECURE_BOOT_FINISH")
	fmt.Println("  status                          GET_STATUS (pretty table)")
	fmt.Println("  loadkey <hex-64-bytes>          LOAD_KEY (M1|M2|M3)")
	fmt.Println("  loadplain <32-hex-chars>        LOAD_PLAIN_KEY (16-byte key)")
	fmt.Println("  export                           EXPORT_RAM_KEY")
	fmt.Println("  rndinit / rnd                    INIT_RND / RND")
	fmt.Println("  dump                             list stored slot metadata")
	fmt.Println("  help                             show this help")
	fmt.Println("  exit / quit / q                  exit")
}

func (r *REPL) cmdDispatch(action sheconst.Action, args []string) {
	var payload []byte
	if len(args) > 0 {
		var err error
		payload, err = hex.DecodeString(args[0])
		if err != nil {
			fmt.Printf("bad hex payload: %v\n", err)
			return
		}
	}
	resp, code := r.d.Handle(context.Background(), r.sc, action, payload)
	if code != 0 {
		fmt.Printf("rc=%d\n", code)
		return
	}
	if len(resp) > 0 {
		fmt.Printf("rc=0 resp=%s\n", hex.EncodeToString(resp))
	} else {
		fmt.Println("rc=0")
	}
}

func (r *REPL) cmdStatus() {
	resp, code := r.d.Handle(context.Background(), r.sc, sheconst.GetStatus, nil)
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	style := table.StyleRounded
	style.Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.SetStyle(style)
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"rc", code})
	if code == 0 && len(resp) == 2 {
		reg := uint16(resp[0])<<8 | uint16(resp[1])
		t.AppendRow(table.Row{"sreg", fmt.Sprintf("0x%04x", reg)})
		t.AppendRow(table.Row{"secure_boot_key_found", reg&sheconst.SREGSecureBoot != 0})
		t.AppendRow(table.Row{"boot_finished", reg&sheconst.SREGBootFinished != 0})
		t.AppendRow(table.Row{"boot_ok", reg&sheconst.SREGBootOK != 0})
		t.AppendRow(table.Row{"rnd_init", reg&sheconst.SREGRNDInit != 0})
	}
	t.AppendRow(table.Row{"uid_set", r.sc.UIDSet})
	t.AppendRow(table.Row{"ram_key_plain", r.sc.RAMKeyPlain})
	t.Render()
}

func (r *REPL) cmdDump() {
	snap, ok := r.d.Store.(keystore.Snapshot)
	if !ok {
		fmt.Println("this keystore backend does not support metadata dumps")
		return
	}
	meta, err := snap.DumpMetadata(context.Background(), r.d.Client)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"slot", "flags", "count"})
	for slot, md := range meta {
		t.AppendRow(table.Row{strconv.Itoa(int(slot)), fmt.Sprintf("0x%02x", md.Flags), md.Count})
	}
	t.Render()
}
