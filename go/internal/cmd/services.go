package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/driver"
	"github.com/mcdev12/typerace/go/internal/gateway"
	"github.com/mcdev12/typerace/go/internal/result"
	"github.com/mcdev12/typerace/go/internal/round"
)

type Services struct {
	Rounds  *round.App
	Results *result.App
	API     *gateway.Handler
	WS      *gateway.WebSocketHandler
}

func setupServices(pool *pgxpool.Pool, config *Config) *Services {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Gateway layer
	clock := clockwork.NewRealClock()

	// Rounds
	roundRepo := round.NewRepository(pool)
	roundApp := round.NewApp(roundRepo, clock, config.roundDuration())

	// Results
	resultRepo := result.NewRepository(pool)
	resultApp := result.NewApp(resultRepo, roundApp)

	// Channels: one NATS subscription per race session
	natsConfig := channel.DefaultNATSConfig()
	if config.NATS.URL != "" {
		natsConfig.URL = config.NATS.URL
	}
	if config.NATS.Namespace != "" {
		natsConfig.Namespace = config.NATS.Namespace
	}
	if config.NATS.Channel != "" {
		natsConfig.ChannelName = config.NATS.Channel
	}
	newChannel := func() channel.Channel {
		return channel.NewNATSChannel(natsConfig, clock)
	}

	// Sessions
	throttle := config.throttleInterval()
	newSession := func(self channel.Member) *driver.Session {
		return driver.NewSession(roundApp, resultApp, resultApp, newChannel, clock, self, throttle)
	}

	return &Services{
		Rounds:  roundApp,
		Results: resultApp,
		API:     gateway.NewHandler(roundApp),
		WS:      gateway.NewWebSocketHandler(newSession, gateway.DefaultConnectionConfig()),
	}
}
