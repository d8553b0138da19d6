package core

// NewDefaultRulesEngine builds a rules engine with the built-in integrity set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(ReferentialIntegrityRule())
	engine.Register(UniqueNamesRule())
	return engine
}
