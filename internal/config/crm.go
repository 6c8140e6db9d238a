package config

import (
	"github.com/rpattn/crmimport/internal/crm"
	"github.com/rpattn/crmimport/internal/metrics"
)

// ClientOptions translates the CRM and import settings into client options.
func (c Config) ClientOptions(reg *metrics.Registry) []crm.Option {
	return []crm.Option{
		crm.WithTimeouts(crm.Timeouts{
			Fields: c.CRM.FieldsTimeout,
			Search: c.CRM.SearchTimeout,
			Create: c.CRM.CreateTimeout,
		}),
		crm.WithRateLimit(c.CRM.RequestsPerSecond, c.CRM.Burst),
		crm.WithRegisterSonetEvent(c.Import.RegisterSonetEvent),
		crm.WithMetrics(reg),
	}
}
