package preset

import "github.com/smartkubik/import-api/internal/importer"

func init() {
	register(Preset{
		Name:        "valery",
		Label:       "Valery Software",
		Description: "Inventory export from Valery (Artículos > Exportar)",
		EntityType:  importer.EntityProducts,
		Columns: map[string]string{
			"Código":          "sku",
			"Descripción":     "name",
			"Departamento":    "category",
			"Grupo":           "subcategory",
			"Marca":           "brand",
			"Unidad":          "unitOfMeasure",
			"Precio 1":        "price",
			"Costo Actual":    "cost",
			"Exento":          "taxExempt",
			"Código Barra":    "barcode",
			"Existencia":      "initialStock",
			"Stock Mínimo":    "minimumStock",
			"Desc. Detallada": "description",
		},
	})
	register(Preset{
		Name:        "saint",
		Label:       "Saint Enterprise",
		Description: "Product list exported from Saint Administrativo",
		EntityType:  importer.EntityProducts,
		Columns: map[string]string{
			"CodProd":  "sku",
			"Descrip":  "name",
			"Descrip2": "description",
			"CodInst":  "category",
			"Marca":    "brand",
			"Unidad":   "unitOfMeasure",
			"Precio1":  "price",
			"CostAct":  "cost",
			"EsExento": "taxExempt",
			"Refere":   "barcode",
			"Existen":  "initialStock",
			"Minimo":   "minimumStock",
		},
	})
	register(Preset{
		Name:        "shopify",
		Label:       "Shopify",
		Description: "Shopify products CSV",
		EntityType:  importer.EntityProducts,
		Columns: map[string]string{
			"Variant SKU":           "sku",
			"Title":                 "name",
			"Body (HTML)":           "description",
			"Product Category":      "category",
			"Type":                  "subcategory",
			"Vendor":                "brand",
			"Variant Price":         "price",
			"Cost per item":         "cost",
			"Variant Taxable":       "taxable",
			"Variant Barcode":       "barcode",
			"Variant Inventory Qty": "initialStock",
			"Tags":                  "tags",
			"Status":                "listingStatus",
		},
	})

	register(Preset{
		Name:        "valery",
		Label:       "Valery Software",
		Description: "Client list exported from Valery",
		EntityType:  importer.EntityCustomers,
		Columns: map[string]string{
			"Razón Social":   "name",
			"RIF":            "taxId",
			"Correo":         "email",
			"Teléfonos":      "phone",
			"Dirección":      "address",
			"Ciudad":         "city",
			"Estado":         "state",
			"Límite Crédito": "creditLimit",
			"Tipo Cliente":   "customerType",
		},
	})
	register(Preset{
		Name:        "saint",
		Label:       "Saint Enterprise",
		Description: "SACLIE export from Saint Administrativo",
		EntityType:  importer.EntityCustomers,
		Columns: map[string]string{
			"CodClie":    "taxId",
			"Descrip":    "name",
			"Email":      "email",
			"Telef":      "phone",
			"Direc1":     "address",
			"Ciudad":     "city",
			"Estado":     "state",
			"LimiteCred": "creditLimit",
		},
	})

	register(Preset{
		Name:        "valery",
		Label:       "Valery Software",
		Description: "Supplier list exported from Valery",
		EntityType:  importer.EntitySuppliers,
		Columns: map[string]string{
			"Razón Social": "name",
			"RIF":          "taxId",
			"Contacto":     "contactName",
			"Correo":       "email",
			"Teléfonos":    "phone",
			"Dirección":    "address",
			"Días Crédito": "paymentTermsDays",
		},
	})
	register(Preset{
		Name:        "saint",
		Label:       "Saint Enterprise",
		Description: "SAPROV export from Saint Administrativo",
		EntityType:  importer.EntitySuppliers,
		Columns: map[string]string{
			"CodProv":   "taxId",
			"Descrip":   "name",
			"Represent": "contactName",
			"Email":     "email",
			"Telef":     "phone",
			"Direc1":    "address",
			"DiasCred":  "paymentTermsDays",
		},
	})

	register(Preset{
		Name:        "valery",
		Label:       "Valery Software",
		Description: "Physical count sheet from Valery",
		EntityType:  importer.EntityInventory,
		Columns: map[string]string{
			"Código":      "sku",
			"Conteo":      "quantity",
			"Depósito":    "location",
			"Lote":        "lotNumber",
			"Vencimiento": "expirationDate",
			"Costo":       "unitCost",
		},
	})

	register(Preset{
		Name:        "saint",
		Label:       "Saint Enterprise",
		Description: "SAINSTA instances export from Saint Administrativo",
		EntityType:  importer.EntityCategories,
		Columns: map[string]string{
			"Descrip":  "name",
			"InsPadre": "parentName",
		},
	})
}
