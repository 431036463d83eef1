package session

import (
	"go.uber.org/fx"

	"github.com/revstrux/revstrux/internal/session/repository"
	"github.com/revstrux/revstrux/internal/session/service"
)

var Module = fx.Module("session.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
