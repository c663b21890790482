package notification

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shopauctions/internal/metrics"
	"shopauctions/internal/services/shop"
)

//go:embed templates/*.json
var templateFS embed.FS

const defaultLocale = "en"

type template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// localized defaults, loaded once from the embedded files
var defaults = loadDefaults()

func loadDefaults() map[string]map[string]template {
	out := map[string]map[string]template{}
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		panic(fmt.Sprintf("embedded templates: %v", err))
	}
	for _, e := range entries {
		locale := strings.TrimSuffix(e.Name(), ".json")
		raw, err := templateFS.ReadFile("templates/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("embedded template %s: %v", e.Name(), err))
		}
		set := map[string]template{}
		if err := json.Unmarshal(raw, &set); err != nil {
			panic(fmt.Sprintf("embedded template %s: %v", e.Name(), err))
		}
		out[locale] = set
	}
	return out
}

// ShopSource is the slice of the shop store the dispatcher needs.
type ShopSource interface {
	Get(ctx context.Context, domain string) (*shop.Shop, error)
	Template(ctx context.Context, domain, typ string) (*shop.Template, error)
}

// Dispatcher renders a job against the effective template and sends it
// through the effective transport. Template and transport resolution
// both degrade instead of failing: merchant override -> localized
// default -> built-in default, and merchant relay -> shared relay ->
// log only.
type Dispatcher struct {
	shops  ShopSource
	shared Transport // nil when no default relay is configured
}

func NewDispatcher(shops ShopSource, shared Transport) *Dispatcher {
	return &Dispatcher{shops: shops, shared: shared}
}

// planEntitled reports whether the merchant's plan includes template
// and transport customization.
func planEntitled(plan string) bool {
	return plan == "pro" || plan == "plus"
}

func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (Outcome, error) {
	sh, err := d.shops.Get(ctx, job.Shop)
	if err != nil {
		// unknown shop still gets the built-in template over the
		// shared transport
		zap.L().Debug("notify.shop_lookup", zap.String("shop", job.Shop), zap.Error(err))
		sh = &shop.Shop{Domain: job.Shop, Locale: defaultLocale}
	}

	tmpl, skipped, err := d.resolveTemplate(ctx, sh, job.Type)
	if err != nil {
		return OutcomeFailed, err
	}
	if skipped {
		return OutcomeSkipped, nil
	}

	subject := Render(tmpl.Subject, job.Data)
	body := Render(tmpl.Body, job.Data)

	transport, degraded := d.resolveTransport(sh)
	if err := transport.Send(ctx, sh.NotificationsFrom, job.Recipient, subject, body); err != nil {
		return OutcomeFailed, err
	}
	if degraded {
		return OutcomeLogged, nil
	}
	return OutcomeSent, nil
}

func (d *Dispatcher) resolveTemplate(ctx context.Context, sh *shop.Shop, typ string) (template, bool, error) {
	if planEntitled(sh.Plan) {
		custom, err := d.shops.Template(ctx, sh.Domain, typ)
		if err != nil {
			return template{}, false, err
		}
		if custom != nil {
			if !custom.Enabled {
				return template{}, true, nil
			}
			return template{Subject: custom.Subject, Body: custom.Body}, false, nil
		}
	}
	if set, ok := defaults[sh.Locale]; ok {
		if t, ok := set[typ]; ok {
			return t, false, nil
		}
	}
	if t, ok := defaults[defaultLocale][typ]; ok {
		return t, false, nil
	}
	return template{}, false, fmt.Errorf("no template for notification type %q", typ)
}

func (d *Dispatcher) resolveTransport(sh *shop.Shop) (t Transport, degraded bool) {
	if planEntitled(sh.Plan) && sh.NotifyWebhookURL != "" {
		return NewWebhookTransport(sh.NotifyWebhookURL, sh.NotifyWebhookToken), false
	}
	if d.shared != nil {
		return d.shared, false
	}
	return LogTransport{}, true
}

// Render substitutes {{token}} placeholders from data. Unknown tokens
// are left in place so a template typo is visible in the output.
func Render(s string, data map[string]string) string {
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}

func observe(typ string, o Outcome) {
	metrics.NotificationsTotal.WithLabelValues(typ, string(o)).Inc()
}
