package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/vaultcore/internal/agent"
	"github.com/dmitrijs2005/vaultcore/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := agent.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
