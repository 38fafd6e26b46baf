package reconcile

// ChannelMap normalizes raw Shopify source-channel codes to display labels.
// "580111" is the numeric id the API reports for the web storefront on older
// orders.
type ChannelMap struct {
	labels   map[string]string
	fallback string
}

// NewChannelMap returns the standard channel mapping. An unrecognized code
// resolves to fallback; an empty fallback passes the raw code through
// unchanged.
func NewChannelMap(fallback string) ChannelMap {
	return ChannelMap{
		labels: map[string]string{
			"web":                 "Online Store",
			"580111":              "Online Store",
			"pos":                 "Foire",
			"shopify_draft_order": "Distributeur",
		},
		fallback: fallback,
	}
}

// Label resolves a raw source-channel code.
func (m ChannelMap) Label(code string) string {
	if label, ok := m.labels[code]; ok {
		return label
	}
	if m.fallback != "" {
		return m.fallback
	}
	return code
}
