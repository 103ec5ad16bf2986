package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/shopscale-auth/internal/server"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(ctx, cfg, server.NewLogger(cfg))
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
