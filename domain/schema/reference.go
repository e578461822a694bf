package schema

// Reference column names of the schedule-delay contract.
const (
	LabelDelay = "label_delay"

	SPIEarly = "spi_early"
	CPIEarly = "cpi_early"
)

var reference = MustNew(Definition{
	FeatureColumns: []string{
		"n_edges",
		"density",
		"critical_path_len",
		"pct_critical_tasks",
		"T_baseline",
		"mean_m",
		"mean_range_po",
		"instability_m",
		SPIEarly,
		CPIEarly,
	},
	LabelColumn: LabelDelay,
	DropColumns: []string{
		"p_late_diag",   // leakage: as good as the target
		"buffer_factor", // design choice
		"n_tasks",       // constant
	},
	ClipRules: []ClipRule{
		{Column: SPIEarly, Min: 0, Max: 2},
		{Column: CPIEarly, Min: 0, Max: 2},
	},
})

// Default returns the process-wide reference schema.
func Default() *Schema { return reference }
