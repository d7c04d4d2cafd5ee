// Command waitfordb blocks until MySQL accepts connections.  Container
// entrypoints run it before migrations:
//
//	waitfordb -max-retries 30 -delay 2s && server -migrate
//
// It exits 0 once the database answers and 3 when every attempt failed.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/iliyamo/mosque-manager/internal/config"
	"github.com/iliyamo/mosque-manager/internal/database"
	"github.com/iliyamo/mosque-manager/internal/logger"
	"github.com/iliyamo/mosque-manager/internal/readiness"
)

func main() {
	dbc := config.LoadDB()
	maxRetries := flag.Int("max-retries", dbc.WaitRetries, "maximum connection attempts")
	delay := flag.Duration("delay", dbc.WaitDelay, "pause between attempts")
	probeTimeout := flag.Duration("probe-timeout", readiness.DefaultProbeTimeout, "timeout of a single attempt")
	flag.Parse()

	lg, err := logger.New(os.Getenv("LOG_LEVEL"), "waitfordb", false)
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Open(dbc.User, dbc.Pass, dbc.Host, dbc.Port, dbc.Name)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	gate := readiness.New(readiness.SQLProbe(db), lg)
	gate.ProbeTimeout = *probeTimeout
	start := time.Now()
	res := gate.MustAwaitReady(*maxRetries, *delay)
	lg.Info("database ready", "attempts", res.Attempts, "elapsed", time.Since(start).Round(time.Millisecond))
}
