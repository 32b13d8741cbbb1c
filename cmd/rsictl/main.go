// Command rsictl sends commands to a running rsibot over HTTP and tails its transaction stream.
//
// Usage:
//
//	rsictl -addr http://localhost:8080 strategy_start rsi-simple
//	rsictl -addr http://localhost:8080 watch
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/internal/web"
)

func main() {
	var (
		addr    string
		token   string
		timeout time.Duration
	)
	flag.StringVar(&addr, "addr", "http://localhost:8080", "rsibot web address")
	flag.StringVar(&token, "token", os.Getenv("WEB_TOKEN"), "command bearer token (defaults to $WEB_TOKEN)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "command timeout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: rsictl [-addr URL] [-token T] <command> [args...] | watch")
		os.Exit(2)
	}

	client := web.NewClient(addr).WithToken(token)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flag.Arg(0) == "watch" {
		err := client.Watch(ctx, func(tx domain.Transaction) {
			fmt.Printf("%s: %s\n", tx.Strategy, tx.String())
		})
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs, err := client.Command(cmdCtx, strings.Join(flag.Args(), " "))
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range msgs {
		fmt.Print(m)
	}
	fmt.Println()
}
