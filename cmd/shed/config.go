package main

import (
	"fmt"

	"github.com/barnettlynn/she-core/internal/keystore"
)

// backend names accepted by the --keystore flag.
const (
	backendMem  = "mem"
	backendFile = "file"
	backendSQL  = "sqlite"
)

// openKeystore builds the keystore.Store named by backend, pointed at dsn
// (a file path for file/sqlite, ignored for mem).
func openKeystore(backend, dsn string) (keystore.Store, error) {
	switch backend {
	case "", backendMem:
		return keystore.NewMemStore(), nil
	case backendFile:
		if dsn == "" {
			return nil, fmt.Errorf("--keystore=file requires --dsn")
		}
		return keystore.NewFileStore(dsn), nil
	case backendSQL:
		if dsn == "" {
			return nil, fmt.Errorf("--keystore=sqlite requires --dsn")
		}
		return keystore.OpenSQLStore(dsn)
	default:
		return nil, fmt.Errorf("unknown keystore backend %q", backend)
	}
}
