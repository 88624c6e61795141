package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/hamed0406/sitecheck/internal/apiclient"
	"github.com/hamed0406/sitecheck/internal/report"
	"github.com/hamed0406/sitecheck/internal/targets"
)

func main() {
	ordered := flag.Bool("ordered", true, "report results in input order")
	latest := flag.Bool("latest", false, "print the most recent stored batch instead of running one")
	flag.Parse()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	client := apiclient.New(api, os.Getenv("API_KEY"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *latest {
		b, err := client.Latest(ctx)
		if apiclient.IsNotFound(err) {
			fmt.Println("No batches stored yet.")
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error contacting API:", err)
			os.Exit(1)
		}
		_ = report.WriteLines(os.Stdout, b)
		return
	}

	urls := flag.Args()
	if len(urls) == 0 {
		urls = readStdin()
	}
	for i, raw := range urls {
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		if !targets.IsValidURL(raw) {
			fmt.Fprintf(os.Stderr, "Invalid URL: %s\n", raw)
			os.Exit(2)
		}
		urls[i] = raw
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "No URLs given.")
		os.Exit(2)
	}

	b, err := client.RunChecks(ctx, urls, *ordered)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(1)
	}
	_ = report.WriteLines(os.Stdout, b)
}

func readStdin() []string {
	if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		fmt.Print("Enter site URLs, one per line (Ctrl-D to finish): ")
	}
	var out []string
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
