package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cardtable/leastcount/pkg/config"
	"github.com/cardtable/leastcount/pkg/server"
	"github.com/cardtable/leastcount/pkg/server/ingress"

	"github.com/rs/zerolog/log"
)

func serveCommand(configs []string) error {
	conf, err := config.Process(configs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	table := server.New(ctx, conf.Server.Game)

	tcp := ingress.NewTCPIngress(table.Events(), table.Joins())
	if err := tcp.Serve(conf.Server.Ingress.TCP.Port); err != nil {
		// The one unrecoverable startup error.
		log.Fatal().Err(err).Int("port", conf.Server.Ingress.TCP.Port).Msg("failed to bind tcp port")
	}
	go tcp.Poll(ctx)

	if conf.Server.Ingress.Web.Enabled {
		ws := ingress.NewWSIngress(table.Events(), table.Joins())
		if err := ws.Serve(ctx, conf.Server.Ingress.Web.Port); err != nil {
			log.Fatal().Err(err).Int("port", conf.Server.Ingress.Web.Port).Msg("failed to bind web port")
		}
	}

	go table.Poll(ctx)

	console := newConsole(table, conf.Server.Game.HostSeated)
	go console.run(ctx)

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}
