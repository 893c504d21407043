package loan

import (
	"github.com/smallbiznis/pawnshop/internal/loan/repository"
	"github.com/smallbiznis/pawnshop/internal/loan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("loan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
