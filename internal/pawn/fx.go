package pawn

import (
	"github.com/smallbiznis/pawnshop/internal/pawn/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pawn.service",
	fx.Provide(service.New),
)
