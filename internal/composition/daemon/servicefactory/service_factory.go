package servicefactory

import (
	"crosspay/go-backend/internal/app"
	"crosspay/go-backend/internal/bootstrap/walletconfig"
	"crosspay/go-backend/internal/intent"
	"crosspay/go-backend/internal/providers/enclave"
	"crosspay/go-backend/internal/providers/privyauth"
)

// BuildDaemonService composes a daemon-ready wallet service from a config path.
func BuildDaemonService(configPath string) (app.DaemonService, walletconfig.Config, error) {
	cfg := walletconfig.LoadFromPath(configPath)

	identity, err := privyauth.NewClient(privyauth.Config{
		BaseURL: cfg.Identity.BaseURL,
		AppID:   cfg.Identity.AppID,
		APIKey:  cfg.Identity.APIKey,
		Timeout: cfg.Identity.Timeout,
	})
	if err != nil {
		return nil, cfg, err
	}

	accounts, err := enclave.NewClient(enclave.Config{
		BaseURL: cfg.Accounts.BaseURL,
		APIKey:  cfg.Accounts.APIKey,
		Timeout: cfg.Accounts.Timeout,
	})
	if err != nil {
		return nil, cfg, err
	}

	svc, err := app.NewService(app.ServiceOptions{
		Identity: identity,
		Accounts: accounts,
		Metrics:  app.NewPipelineMetrics(nil),
		Asset: intent.Asset{
			Contract: cfg.Asset.TokenAddress,
			Decimals: cfg.Asset.TokenDecimals,
			ChainID:  cfg.Asset.ChainID,
		},
	})
	if err != nil {
		return nil, cfg, err
	}
	return svc, cfg, nil
}
