package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/barnettlynn/she-core/internal/dispatch"
	"github.com/barnettlynn/she-core/internal/ratelimit"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/shectx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a keystore backend and dispatch newline-framed commands from stdin",
	Long: `serve opens the configured keystore backend and reads one command per
line from stdin as "<action> <hex-payload>", dispatching each through a
single SHE context and writing "<rc> <hex-response>" to stdout. The real SHE
transport/framing layer is out of this core's scope (spec.md §1); this is a
minimal line-oriented stand-in so the dispatcher is reachable from a shell
without a PC/SC reader attached (see cmd/she-pcsc for the real transport).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("keystore", "mem", "keystore backend: mem, file, or sqlite")
	serveCmd.Flags().String("dsn", "", "keystore backend path (file/sqlite)")
	serveCmd.Flags().String("client", "default", "client namespace this dispatcher serves")
	serveCmd.Flags().Float64("rate", 0, "per-client commands/sec budget (0 disables the BUSY gate)")
	serveCmd.Flags().Int("burst", 1, "per-client burst allowance for --rate")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := bindRootFlags(cmd); err != nil {
		return err
	}

	store, err := openKeystore(viper.GetString("keystore"), viper.GetString("dsn"))
	if err != nil {
		return err
	}

	client := viper.GetString("client")
	d := &dispatch.Dispatcher{Store: store, Client: client, Policy: slotPolicy}
	if rps := viper.GetFloat64("rate"); rps > 0 {
		d.Limiter = ratelimit.New(rps, viper.GetInt("burst"))
	}

	sc, err := shectx.New(client)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	defer sc.Zeroize()

	slog.Info("shed ready", slog.String("client", client), slog.String("keystore", viper.GetString("keystore")))

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		actionNum, err := strconv.ParseUint(fields[0], 10, 16)
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
		resp, code := d.Handle(ctx, sc, sheconst.Action(actionNum), payload)
		fmt.Printf("%d %s\n", code, hex.EncodeToString(resp))
	}
	return scanner.Err()
}
