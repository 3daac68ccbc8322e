package adstracking

import (
	"github.com/gasbutano/checkoutbackend/lib/myhttp"
)

// ConversionConfig identifies the Google Ads account and conversion
// actions of one deployment domain. The zero value is the no-op entry:
// conversions for unknown domains are silently skipped.
type ConversionConfig struct {
	ConversionID       string
	BeginCheckoutLabel string
	PurchaseLabel      string
}

func (c ConversionConfig) IsNoop() bool {
	return c.ConversionID == ""
}

// Table maps deployment hostnames to their conversion configuration.
// Lookup is a pure function over a fixed table.
type Table struct {
	perHost map[string]ConversionConfig
}

func NewTable(perHost map[string]ConversionConfig) Table {
	normalized := make(map[string]ConversionConfig, len(perHost))
	for host, config := range perHost {
		normalized[myhttp.NormalizeHost(host)] = config
	}

	return Table{perHost: normalized}
}

// ConfigForHost returns the conversion config for this hostname or the
// no-op entry when the domain is not in the table.
func (t Table) ConfigForHost(host string) ConversionConfig {
	config, found := t.perHost[myhttp.NormalizeHost(host)]
	if !found {
		return ConversionConfig{}
	}

	return config
}
