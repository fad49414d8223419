package main

import (
	"log"
	"net/http"
)

func main() {
	app, cleanup, err := InitializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	log.Printf("Server starting on %s", app.Config.ListenAddr)
	if err := http.ListenAndServe(app.Config.ListenAddr, app.Router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
