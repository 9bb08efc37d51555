package daemonserver

import (
	"crosspay/go-backend/internal/adapters/rpc"
	"crosspay/go-backend/internal/composition/daemon/servicefactory"
)

// NewRPCServerWithOptions wires the wallet service and RPC transport.
// Flag overrides, when non-empty, win over config file and env values.
func NewRPCServerWithOptions(rpcAddr, configPath, rpcToken string) (*rpc.Server, error) {
	svc, cfg, err := servicefactory.BuildDaemonService(configPath)
	if err != nil {
		return nil, err
	}
	opts := rpc.Options{
		Addr:          cfg.RPC.Addr,
		Token:         cfg.RPC.Token,
		RatePerSecond: cfg.RPC.RatePerSecond,
		RateBurst:     cfg.RPC.RateBurst,
	}
	if rpcAddr != "" {
		opts.Addr = rpcAddr
	}
	if rpcToken != "" {
		opts.Token = rpcToken
	}
	return rpc.NewServerWithService(opts, svc), nil
}
