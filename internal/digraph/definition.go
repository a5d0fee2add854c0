package digraph

// definition is the raw YAML shape of a schedule file. Fields are decoded
// as-is and validated by the builder.
type definition struct {
	Name        string                   `yaml:"name"`
	Nodes       []nodeDef                `yaml:"nodes"`
	Termination map[string]*conditionDef `yaml:"termination"`
}

type nodeDef struct {
	Name      string        `yaml:"name"`
	Depends   []string      `yaml:"depends"`
	Condition *conditionDef `yaml:"condition"`
}

// conditionDef is a one-of: exactly one field may be set. Combinators nest
// arbitrarily.
type conditionDef struct {
	Always       bool            `yaml:"always,omitempty"`
	Never        bool            `yaml:"never,omitempty"`
	AtPass       *int            `yaml:"atPass,omitempty"`
	AfterNPasses *int            `yaml:"afterNPasses,omitempty"`
	EveryNPasses *int            `yaml:"everyNPasses,omitempty"`
	EveryNCalls  *callDef        `yaml:"everyNCalls,omitempty"`
	AfterNCalls  *callDef        `yaml:"afterNCalls,omitempty"`
	AllHaveRun   *allHaveRunDef  `yaml:"allHaveRun,omitempty"`
	All          []*conditionDef `yaml:"all,omitempty"`
	Any          []*conditionDef `yaml:"any,omitempty"`
	Not          *conditionDef   `yaml:"not,omitempty"`
	NWhile       *nWhileDef      `yaml:"nWhile,omitempty"`
}

type callDef struct {
	Node  string `yaml:"node"`
	N     int    `yaml:"n"`
	Scale string `yaml:"scale,omitempty"`
}

type allHaveRunDef struct {
	Scale string   `yaml:"scale,omitempty"`
	Nodes []string `yaml:"nodes,omitempty"`
}

type nWhileDef struct {
	Condition *conditionDef `yaml:"condition"`
	N         int           `yaml:"n"`
}
