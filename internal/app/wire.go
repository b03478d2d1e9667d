//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"
)

func buildAppWithWire(ctx context.Context, builder *AppBuilder) (*App, error) {
	wire.Build(
		wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
		provideAppFromBuilder,
	)
	return nil, nil
}
