package shop

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/imba3r/kedai/livesync"
)

// Catalogue is the starter menu.
func Catalogue() []MenuItem {
	return []MenuItem{
		{Name: "Espresso", Category: CategoryCoffee, Price: 18000, Description: "Ekstrak kopi murni dengan crema tebal yang kaya rasa.", ImageURL: "https://placehold.co/400x400/6F4E37/FFFFFF?text=Espresso"},
		{Name: "Caffe Latte", Category: CategoryCoffee, Price: 25000, Description: "Perpaduan espresso dengan susu steam yang lembut dan creamy.", ImageURL: "https://placehold.co/400x400/A0522D/FFFFFF?text=Latte"},
		{Name: "Cappuccino", Category: CategoryCoffee, Price: 25000, Description: "Espresso, susu steam, dan busa susu tebal dalam harmoni sempurna.", ImageURL: "https://placehold.co/400x400/8B4513/FFFFFF?text=Cappuccino"},
		{Name: "Kopi Gula Aren", Category: CategoryCoffee, Price: 28000, Description: "Kopi susu kekinian dengan manis legit dari gula aren asli.", ImageURL: "https://placehold.co/400x400/D2691E/FFFFFF?text=Kopi+Aren"},
		{Name: "Manual Brew V60", Category: CategoryCoffee, Price: 30000, Description: "Seduhan kopi manual yang menonjolkan karakter asli biji kopi.", ImageURL: "https://placehold.co/400x400/5C4033/FFFFFF?text=V60"},
		{Name: "Croissant", Category: CategorySnack, Price: 22000, Description: "Pastry renyah dan buttery, teman sempurna untuk minum kopi.", ImageURL: "https://placehold.co/400x400/DEB887/000000?text=Croissant"},
	}
}

// Seed creates every catalogue item whose name is not in existing and
// returns the identifiers the store assigned.
func Seed(ctx context.Context, g *livesync.Gateway, appID string, existing livesync.View[MenuItem]) ([]string, error) {
	present := map[string]bool{}
	for _, item := range existing {
		present[item.Name] = true
	}
	var ids []string
	for _, item := range Catalogue() {
		if present[item.Name] {
			glog.V(1).Infof("[seed] %s already on the menu", item.Name)
			continue
		}
		id, err := g.Create(ctx, CollectionPath(appID, MenuItems), item.Prepared())
		if err != nil {
			return ids, fmt.Errorf("seed %s: %w", item.Name, err)
		}
		glog.Infof("[seed] %s -> %s", item.Name, id)
		ids = append(ids, id)
	}
	return ids, nil
}
