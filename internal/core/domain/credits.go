package domain

// CreditPackage is a purchasable bundle of the non-refundable credits
// sub-currency. Price is in minor currency units and is debited from the
// wallet's available balance.
type CreditPackage struct {
	ID      string `json:"id"`
	Credits int64  `json:"credits"`
	Price   int64  `json:"price"`
}

var creditPackages = map[string]CreditPackage{
	"starter": {ID: "starter", Credits: 50, Price: 50000},
	"growth":  {ID: "growth", Credits: 150, Price: 120000},
	"scale":   {ID: "scale", Credits: 500, Price: 350000},
}

// PackageByID looks up a credit package by its catalog id.
func PackageByID(id string) (CreditPackage, bool) {
	p, ok := creditPackages[id]
	return p, ok
}

// Packages returns the credit package catalog.
func Packages() []CreditPackage {
	out := make([]CreditPackage, 0, len(creditPackages))
	for _, p := range creditPackages {
		out = append(out, p)
	}
	return out
}
