// Command storefront serves the cart and checkout API for the shop UI.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/cheese-kart/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadStorefrontConfig()
		if err != nil {
			return err
		}
		return appkg.RunStorefront(ctx, lg, m, cfg)
	})
}
