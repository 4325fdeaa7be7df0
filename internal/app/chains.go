package app

import (
	"fmt"
	"strings"

	"model-router/internal/chain"
	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
	"model-router/internal/crypto"
)

// loadRoutes reads the chains file and resolves encrypted backend
// credentials
func (app *App) loadRoutes() (*chain.Routes, error) {
	routes, err := chain.LoadRoutes(app.Config.ChainsFile)
	if err != nil {
		return nil, err
	}

	for name, backend := range routes.Backends {
		if !strings.HasPrefix(backend.AuthToken, crypto.EncryptedPrefix) {
			continue
		}
		if app.Encryptor == nil {
			return nil, errors.ConfigError(fmt.Sprintf(
				"backend %q has an encrypted auth token but CONFIG_ENCRYPTION_KEY is not set", name))
		}

		token, err := app.Encryptor.DecryptToken(backend.AuthToken)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf(
				"failed to decrypt auth token for backend %q: %v", name, err))
		}
		backend.AuthToken = token
		routes.Backends[name] = backend
	}

	app.Logger.Info("Routes loaded",
		logging.Field{Key: "chains_file", Value: app.Config.ChainsFile},
		logging.Field{Key: "backends", Value: len(routes.Backends)},
		logging.Field{Key: "chains", Value: len(routes.Chains)},
	)
	return routes, nil
}
