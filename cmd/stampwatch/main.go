// Command stampwatch follows one participant's card from the terminal and
// prints a line each time their progress changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dukerupert/stampcard/internal/catalog"
	"github.com/dukerupert/stampcard/internal/database"
	"github.com/dukerupert/stampcard/internal/logging"
	"github.com/dukerupert/stampcard/internal/progress"
	"github.com/dukerupert/stampcard/internal/store"
)

func main() {
	dbPath := flag.String("db", envOr("STAMPCARD_DB_PATH", "stampcard.db"), "path to the stampcard database")
	staffID := flag.String("staff", "", "staff id of the participant")
	lastName := flag.String("last", "", "last name of the participant")
	interval := flag.Duration("interval", progress.DefaultPollInterval, "poll interval")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if *staffID == "" || *lastName == "" {
		fmt.Fprintln(os.Stderr, "usage: stampwatch -staff ID -last NAME [-db PATH] [-interval 5s]")
		os.Exit(2)
	}

	logger := logging.Setup(*logLevel, "text")

	db, err := database.Open(*dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cat := catalog.New(store.NewGameStore(db), store.NewHostStore(db), logger.With("component", "catalog"))
	view := progress.NewView(store.NewParticipantStore(db), cat, clockwork.NewRealClock(), progress.DefaultTTL)

	watcher, err := progress.NewWatcher(view, logger.With("component", "watcher"))
	if err != nil {
		logger.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}
	watcher.Start()
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var last string
	sub, err := watcher.Watch(ctx, *staffID, *lastName, *interval, func(p *progress.Progress, err error) {
		var line string
		if err != nil {
			line = "error: " + err.Error()
		} else {
			line = summary(p)
		}
		if line == last {
			return
		}
		last = line
		fmt.Printf("%s  %s\n", time.Now().Format(time.TimeOnly), line)
	})
	if err != nil {
		logger.Error("failed to watch participant", "error", err)
		os.Exit(1)
	}
	defer sub.Stop()

	<-ctx.Done()
}

func summary(p *progress.Progress) string {
	if p.NoGames {
		return fmt.Sprintf("%s %s: no active games", p.StaffID, p.LastName)
	}
	s := fmt.Sprintf("%s %s: %d/%d games (%d%%)", p.StaffID, p.LastName, p.Completed, p.Total, p.Percentage)
	switch {
	case p.GiftRedeemed:
		s += ", gift redeemed"
	case p.Eligible:
		s += ", gift ready"
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
