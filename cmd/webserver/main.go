// Command webserver runs the epoll-based HTTP/1.1 serving engine.
package main

import (
	"context"
	"log"

	_ "github.com/go-sql-driver/mysql"

	"github.com/searchktools/webserver/app"
	"github.com/searchktools/webserver/config"
)

func main() {
	cfg := config.New()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("webserver: init failed: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("webserver: exited with error: %v", err)
	}
}
