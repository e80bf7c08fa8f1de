package combat

import "sort"

type Category string

const (
	CategoryMove    Category = "move"
	CategoryAttack  Category = "attack"
	CategoryDefend  Category = "defend"
	CategoryDodge   Category = "dodge"
	CategorySpecial Category = "special"
)

// ActionSpec descreve custo de stamina, categoria e dano base de uma ação
type ActionSpec struct {
	Name       string   `json:"name"`
	Cost       int      `json:"cost"`
	Category   Category `json:"category"`
	BaseDamage int      `json:"baseDamage,omitempty"`
}

const (
	MoveForward = "move_forward"
	MoveBack    = "move_back"
	StrafeLeft  = "strafe_left"
	StrafeRight = "strafe_right"
	Attack      = "attack"
	HeavyAttack = "heavy_attack"
	Defend      = "defend"
	Dodge       = "dodge"
	Taunt       = "taunt"
)

var table = map[string]ActionSpec{
	MoveForward: {Name: MoveForward, Cost: 5, Category: CategoryMove},
	MoveBack:    {Name: MoveBack, Cost: 5, Category: CategoryMove},
	StrafeLeft:  {Name: StrafeLeft, Cost: 8, Category: CategoryMove},
	StrafeRight: {Name: StrafeRight, Cost: 8, Category: CategoryMove},
	Attack:      {Name: Attack, Cost: 15, Category: CategoryAttack, BaseDamage: 25},
	HeavyAttack: {Name: HeavyAttack, Cost: 30, Category: CategoryAttack, BaseDamage: 45},
	Defend:      {Name: Defend, Cost: 10, Category: CategoryDefend},
	Dodge:       {Name: Dodge, Cost: 20, Category: CategoryDodge},
	Taunt:       {Name: Taunt, Cost: 5, Category: CategorySpecial},
}

// Lookup retorna a especificação da ação, se existir
func Lookup(name string) (ActionSpec, bool) {
	a, ok := table[name]
	return a, ok
}

// Actions lista a tabela de ações ordenada por nome
func Actions() []ActionSpec {
	out := make([]ActionSpec, 0, len(table))
	for _, a := range table {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
