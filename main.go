package main

import (
	"os"

	"neuyz/cmd"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/crypto/x509roots/fallback" // We need this to make TLS work in scratch containers
)

func main() {
	// NEUYZ_* settings may come from a .env file; a missing file is fine
	_ = godotenv.Load()

	if err := cmd.RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
