package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
)

var provisionCmd = &cobra.Command{
	Use:   "provision <slot>",
	Short: "Write a slot's raw key material from a non-echoing terminal prompt",
	Long: `provision reads a 32-character hex AES-128 key from the terminal
without echoing it (golang.org/x/term, the same raw-mode facility the
teacher's keyswap/permissionsedit tools use on os.Stdin's fd) and writes it
directly into the keystore via AddObject, bypassing the authenticated
LOAD_KEY protocol. Intended for bootstrapping SECRET_KEY_ID/BOOT_MAC_KEY_ID
on a brand new keystore, where there is no existing auth key to drive
LOAD_KEY with in the first place.`,
	Args: cobra.ExactArgs(1),
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().String("keystore", "mem", "keystore backend: mem, file, or sqlite")
	provisionCmd.Flags().String("dsn", "", "keystore backend path (file/sqlite)")
	provisionCmd.Flags().String("client", "default", "client namespace to provision")
	provisionCmd.Flags().Uint32("flags", 0, "key-record flags to store (bit0=write-protect, bit1=wildcard)")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	if err := bindRootFlags(cmd); err != nil {
		return err
	}

	slotNum, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid slot %q: %w", args[0], err)
	}

	store, err := openKeystore(viper.GetString("keystore"), viper.GetString("dsn"))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "key (32 hex chars) for slot %d: ", slotNum)
	line, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}

	raw, err := hex.DecodeString(string(line))
	if err != nil || len(raw) != sheconst.KeySize {
		return fmt.Errorf("key must be exactly %d hex-encoded bytes", sheconst.KeySize)
	}

	var key [sheconst.KeySize]byte
	copy(key[:], raw)

	flags := byte(viper.GetUint32("flags"))
	if !cmd.Flags().Changed("flags") {
		// No explicit --flags: fall back to the operator's slot policy, the
		// same default/override source LOAD_PLAIN_KEY consults at runtime.
		flags = slotPolicy.FlagsFor(sheconst.Slot(slotNum))
	}

	rec := keystore.Record{
		ID:       keystore.ID{Client: viper.GetString("client"), Slot: sheconst.Slot(slotNum)},
		Metadata: keystore.Metadata{Flags: flags},
		Key:      key,
	}
	if err := store.AddObject(cmd.Context(), rec); err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "slot %d provisioned\n", slotNum)
	return nil
}
