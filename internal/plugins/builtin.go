package plugins

import (
	memorystore "github.com/ArionMiles/parcelas/pkg/plugins/stores/memory"
	postgresstore "github.com/ArionMiles/parcelas/pkg/plugins/stores/postgres"
	sqlitestore "github.com/ArionMiles/parcelas/pkg/plugins/stores/sqlite"
	csvwriter "github.com/ArionMiles/parcelas/pkg/plugins/writers/csv"
	jsonwriter "github.com/ArionMiles/parcelas/pkg/plugins/writers/json"
	sheetswriter "github.com/ArionMiles/parcelas/pkg/plugins/writers/sheets"
)

// Default returns a registry holding every built-in store and writer.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []StorePlugin{
		&memorystore.Plugin{},
		&postgresstore.Plugin{},
		&sqlitestore.Plugin{},
	} {
		// Names are distinct constants, so registration cannot collide.
		_ = r.RegisterStore(p)
	}
	for _, p := range []WriterPlugin{
		&csvwriter.Plugin{},
		&jsonwriter.Plugin{},
		&sheetswriter.Plugin{},
	} {
		_ = r.RegisterWriter(p)
	}
	return r
}
