// Command nextroute prints the onboarding screen a status leads to.
//
// The status is read as JSON from a file, from stdin, or fetched from the
// backend with -token:
//
//	nextroute status.json
//	curl -s .../onboarding/status | nextroute
//	BACKEND_BASE_URL=https://api.example.com nextroute -token "$TOKEN"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/decoderlabs/decoder-gateway/internal/backend"
	"github.com/decoderlabs/decoder-gateway/internal/credential"
	"github.com/decoderlabs/decoder-gateway/internal/onboarding"
	"github.com/decoderlabs/decoder-gateway/internal/proxy"
)

func main() {
	token := flag.String("token", "", "fetch the status from the backend with this bearer token")
	timeout := flag.Duration("timeout", 10*time.Second, "backend fetch timeout")
	verbose := flag.Bool("v", false, "also print the decoded status")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: nextroute [-v] [-token TOKEN] [status.json]")
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()

	status, err := readStatus(*token, *timeout, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "nextroute: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(out))
	}

	route := onboarding.Decide(status)
	if route == onboarding.RouteNone {
		fmt.Println("(none)")
		return
	}
	fmt.Println(route)
}

func readStatus(token string, timeout time.Duration, path string) (*onboarding.Status, error) {
	if token != "" {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		f := &onboarding.HTTPFetcher{
			Gateway:    proxy.New(proxy.WithUpstreamTimeout(timeout)),
			Backend:    backend.NewResolver(),
			Credential: &credential.Credential{Token: credential.Normalize(token), Source: "flag"},
		}
		return f.FetchStatus(ctx)
	}

	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		r = file
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	return onboarding.FixtureFetcher{Body: raw}.FetchStatus(context.Background())
}
