// Command upstream is a stand-in backend for trying the gateway locally.
package main

import (
	"encoding/json"
	"net/http"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-hclog"
)

type CLI struct {
	Addr string `help:"Listen address." default:":3001"`
	Name string `help:"Name reported in responses." default:"upstream"`
}

func main() {
	cli := CLI{}
	kong.Parse(&cli, kong.Name("upstream"), kong.Description("Echo backend for local gateway testing"))

	logger := hclog.New(&hclog.LoggerOptions{Name: cli.Name})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Info("received request", "method", r.Method, "path", r.URL.Path, "request_id", r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"backend":         cli.Name,
			"path":            r.URL.Path,
			"x_forwarded_for": r.Header.Get("X-Forwarded-For"),
		})
	})

	logger.Info("upstream starting", "addr", cli.Addr)
	if err := http.ListenAndServe(cli.Addr, nil); err != nil {
		logger.Error("upstream stopped", "error", err)
	}
}
