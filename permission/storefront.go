package permission

// Storefront permission names.
const (
	CatalogBrowse  = "catalog:browse"
	CartManage     = "cart:manage"
	OrdersPlace    = "orders:place"
	OrdersViewOwn  = "orders:view_own"
	ProductsManage = "products:manage"
	OrdersFulfill  = "orders:fulfill"
	PayoutsView    = "payouts:view"
	AdminUsers     = "admin:users"
	AdminCatalog   = "admin:catalog"
	AdminOrders    = "admin:orders"
)

var storefrontPermissions = []string{
	CatalogBrowse,
	CartManage,
	OrdersPlace,
	OrdersViewOwn,
	ProductsManage,
	OrdersFulfill,
	PayoutsView,
	AdminUsers,
	AdminCatalog,
	AdminOrders,
}

// Storefront returns a frozen RoleManager with the user, seller and admin roles.
func Storefront() *RoleManager {
	reg := NewRegistry()
	for _, name := range storefrontPermissions {
		if _, err := reg.Register(name); err != nil {
			panic("permission: storefront registry: " + err.Error())
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	must := func(err error) {
		if err != nil {
			panic("permission: storefront roles: " + err.Error())
		}
	}
	must(rm.RegisterRole("user", CatalogBrowse, CartManage, OrdersPlace, OrdersViewOwn))
	must(rm.RegisterRole("seller", CatalogBrowse, ProductsManage, OrdersFulfill, PayoutsView))
	must(rm.RegisterRootRole("admin"))
	rm.Freeze()
	return rm
}
