package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"tgstate/internal/domain"
	"tgstate/internal/logging"
)

// Options holds runtime wiring choices that are not user settings.
type Options struct {
	Logger   logging.Logger       // defaults to logging.Nop()
	Prompter domain.Prompter      // required for login and ask-each-time
	HTTP     *http.Client         // optional; defaults to http.DefaultClient
	Registry *prometheus.Registry // optional; a fresh registry when nil
}
