//go:build wasip1

// Command holguest is the runtime guest module.
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o holguest.wasm ./cmd/holguest
package main

import (
	"log/slog"

	"github.com/hpp2334/hol-runtime/guest"
	hollog "github.com/hpp2334/hol-runtime/log"
)

func init() {
	logger := hollog.Install(hollog.WithLevel(slog.LevelInfo))
	if _, err := guest.Install(guest.PullFromHost, logger); err != nil {
		panic(err)
	}
}

func main() {}
