package bot

import (
	"encoding/json"
	"net/http"

	"github.com/EgorLis/adaptgo/pkg/gateway"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type health struct {
	State  string `json:"state"`
	User   string `json:"user,omitempty"`
	Uptime string `json:"uptime"`
}

// Router — /metrics (реестр бота) и /healthz. healthz отвечает 503,
// пока шлюз не в dispatching.
func (bot *Bot) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(bot.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		state := bot.client.State()
		h := health{
			State:  state.String(),
			Uptime: bot.Uptime().String(),
		}
		if u := bot.client.User(); u != nil && u.User != nil {
			h.User = u.ID.String()
		}
		w.Header().Set("Content-Type", "application/json")
		if state != gateway.Dispatching {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	})
	return r
}
