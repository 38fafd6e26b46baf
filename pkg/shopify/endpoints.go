package shopify

import "fmt"

// Resource identifies a Shopify Admin API collection endpoint.
type Resource string

const (
	// ResourceOrders is the orders collection.
	ResourceOrders Resource = "orders"

	// ResourceProducts is the products collection.
	ResourceProducts Resource = "products"

	// ResourceInventoryLevels is the inventory levels collection.
	ResourceInventoryLevels Resource = "inventory_levels"

	// ResourceLocations is the store locations collection.
	ResourceLocations Resource = "locations"
)

// field returns the name of the JSON array field carrying the records in a
// response body for this resource.
func (r Resource) field() string {
	return string(r)
}

// resourceURL builds the collection endpoint URL for a shop and API version.
// Credentials are attached separately per auth mode; the URL itself carries
// none.
func resourceURL(shop, apiVersion string, resource Resource) string {
	return fmt.Sprintf("https://%s.myshopify.com/admin/api/%s/%s.json",
		shop, apiVersion, resource)
}
