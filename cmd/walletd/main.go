package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"crosspay/go-backend/internal/composition/daemonserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (default from config)")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Crosspay-RPC-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("walletd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := daemonserver.NewRPCServerWithOptions(*rpcAddr, *configPath, *rpcToken)
	if err != nil {
		log.Fatalf("walletd failed to initialize: %v", err)
	}

	log.Println("walletd starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("walletd failed: %v", err)
	}
	log.Println("walletd stopped")
}
