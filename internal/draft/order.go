package draft

// SnakeOrder builds a cyclic pick order that reverses direction every round:
// [A B C] becomes [A B C C B A], so repeating it with the usual modular
// advance produces a snake draft.
func SnakeOrder(teams []string) []string {
	order := make([]string, 0, len(teams)*2)
	order = append(order, teams...)
	for i := len(teams) - 1; i >= 0; i-- {
		order = append(order, teams[i])
	}
	return order
}

// UniqueTeams counts distinct team ids in a pick order, which may repeat
// entries (snake orders list each team twice per cycle).
func UniqueTeams(pickOrder []string) int {
	seen := make(map[string]struct{}, len(pickOrder))
	for _, t := range pickOrder {
		seen[t] = struct{}{}
	}
	return len(seen)
}
