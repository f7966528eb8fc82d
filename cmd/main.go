package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stockcast/stockcast-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()
	a.Log.Info("Stockcast backend running", "model_version", a.ActiveVersion())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	a.Log.Info("Shutting down", "signal", sig.String())
}
