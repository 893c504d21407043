package transaction

import (
	"github.com/smallbiznis/pawnshop/internal/transaction/repository"
	"github.com/smallbiznis/pawnshop/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
