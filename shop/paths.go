package shop

const (
	MenuItems     = "menuItems"
	Orders        = "orders"
	Customers     = "customers"
	Settings      = "settings"
	CompanyInfoID = "companyInfo"
)

// CollectionPath scopes a collection to one application.
func CollectionPath(appID, collection string) string {
	return "artifacts/" + appID + "/public/data/" + collection
}
