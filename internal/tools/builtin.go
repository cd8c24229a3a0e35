package tools

// NewBuiltinRegistry returns a Registry with all eleven tools registered
// (spec.md §4.2).
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()

	r.Register("read_context", "Load content for a knowledge-base key, optionally ranged.", readContextSchema, ReadContext)
	r.Register("write_context", "Create or overwrite a derived knowledge-base entry.", writeContextSchema, WriteContext)
	r.Register("remove_context", "Remove a non-protected knowledge-base key.", removeContextSchema, RemoveContext)
	r.Register("manage_todos", "Add, complete, or list tasks on the turn's task list.", manageTodosSchema, ManageTodos)
	r.Register("update_user_profile", "Patch one of the five profile sections and regenerate its summaries.", updateUserProfileSchema, UpdateUserProfile)
	r.Register("save_to_portfolio", "Add an already-analysed property to the user's portfolio.", saveToPortfolioSchema, SaveToPortfolio)
	r.Register("remove_from_portfolio", "Soft-archive a portfolio item after explicit user confirmation.", removeFromPortfolioSchema, RemoveFromPortfolio)
	r.Register("switch_active_property", "Make one portfolio item the user's active property.", switchActivePropertySchema, SwitchActiveProperty)
	r.Register("search_portfolio", "Resolve a natural-language reference to a portfolio item.", searchPortfolioSchema, SearchPortfolio)
	r.Register("trigger_property_analysis", "Run the analysis pipeline for a property URL and persist its results.", triggerPropertyAnalysisSchema, TriggerPropertyAnalysis)
	r.Register("recalculate_costs", "Recompute an analysis's totals from cached room features.", recalculateCostsSchema, RecalculateCosts)

	return r
}
