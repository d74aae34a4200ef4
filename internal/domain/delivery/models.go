package delivery

// Models lists every persisted delivery type in migration order.
func Models() []any {
	return []any{
		&LearnerStyleProfile{},
		&LearnerStyleArm{},
		&ConceptBrief{},
		&Encounter{},
		&EncounterSignal{},
		&RetentionCheck{},
		&ConceptMastery{},
	}
}
