package vectorstore

import "context"

// Collection names for steward's knowledge entities. One collection per
// entity kind; users share collections and are separated by payload
// isolation.
const (
	// CollectionMemories holds agent semantic memories.
	CollectionMemories = "steward_memories"

	// CollectionDecisions holds decision summaries for precedent search.
	CollectionDecisions = "steward_decisions"

	// CollectionRules holds learned rule texts for dedup and retrieval.
	CollectionRules = "steward_rules"

	// CollectionPreferences holds learned preference texts.
	CollectionPreferences = "steward_preferences"

	// CollectionGoldens holds vetted example actions. Goldens are
	// platform-wide, stored under the synthetic system user.
	CollectionGoldens = "steward_goldens"
)

// KnowledgeCollections lists every collection steward maintains.
var KnowledgeCollections = []string{
	CollectionMemories,
	CollectionDecisions,
	CollectionRules,
	CollectionPreferences,
	CollectionGoldens,
}

// EnsureKnowledgeCollections creates all steward collections that do not
// exist yet. Called once at startup; idempotent.
func EnsureKnowledgeCollections(ctx context.Context, store Store) error {
	for _, name := range KnowledgeCollections {
		if err := store.EnsureCollection(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
