package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

const usage = `Usage: roulette [flags] <commande>

Commandes:
  health                      état des pools
  version                     version du serveur
  pools                       liste des pools
  discover <pays> [type]      tire un titre (type: movie, series, any)
  refresh [<pays> <type>]     force le rafraîchissement (tous les pools sans argument)
  runs [id]                   historique des rafraîchissements
  settings                    réglages courants`

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("server", envOr("ROULETTE_SERVER_URL", "http://127.0.0.1:8080"), "URL du serveur (ex: http://127.0.0.1:8080)")
	timeout := flag.Duration("timeout", 10*time.Second, "Timeout HTTP")
	minRating := flag.Int("min-rating", 0, "Note minimale (discover)")
	user := flag.String("user", envOr("ROULETTE_USER", ""), "Identifiant utilisateur (discover)")
	limit := flag.Int("limit", 20, "Nombre de runs (runs)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: *timeout}
	api := strings.TrimRight(*baseURL, "/") + "/api/v1"

	switch args[0] {
	case "health":
		run(client, http.MethodGet, api+"/health")
	case "version":
		run(client, http.MethodGet, api+"/version")
	case "pools":
		run(client, http.MethodGet, api+"/pools")
	case "settings":
		run(client, http.MethodGet, api+"/settings")
	case "discover":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: roulette discover <pays> [type]")
			os.Exit(2)
		}
		q := url.Values{}
		q.Set("country", args[1])
		if len(args) > 2 {
			q.Set("type", args[2])
		}
		if *minRating > 0 {
			q.Set("minRating", fmt.Sprint(*minRating))
		}
		if *user != "" {
			q.Set("userId", *user)
		}
		run(client, http.MethodGet, api+"/discover?"+q.Encode())
	case "refresh":
		switch len(args) {
		case 1:
			run(client, http.MethodPost, api+"/pools/refresh")
		case 3:
			run(client, http.MethodPost, api+"/pools/"+url.PathEscape(args[1])+"/"+url.PathEscape(args[2])+"/refresh")
		default:
			fmt.Fprintln(os.Stderr, "Usage: roulette refresh [<pays> <type>]")
			os.Exit(2)
		}
	case "runs":
		if len(args) > 1 {
			run(client, http.MethodGet, api+"/refresh-runs/"+url.PathEscape(args[1]))
			return
		}
		run(client, http.MethodGet, fmt.Sprintf("%s/refresh-runs?limit=%d", api, *limit))
	default:
		fmt.Fprintln(os.Stderr, "Commande inconnue:", args[0])
		os.Exit(2)
	}
}

func run(client *http.Client, method, target string) {
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, b, "", "  "); err == nil {
		pretty.WriteByte('\n')
		_, _ = pretty.WriteTo(os.Stdout)
	} else {
		os.Stdout.Write(b)
		os.Stdout.Write([]byte("\n"))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
