package bk

import "fmt"

// RecipeKind identifies one of the three backup strategies.
type RecipeKind string

const (
	RecipeFull         RecipeKind = "full"
	RecipeIncremental  RecipeKind = "incremental"
	RecipeDifferential RecipeKind = "differential"
)

// ParseRecipeKind validates a raw kind string.
func ParseRecipeKind(s string) (RecipeKind, error) {
	switch RecipeKind(s) {
	case RecipeFull, RecipeIncremental, RecipeDifferential:
		return RecipeKind(s), nil
	default:
		return "", fmt.Errorf("%w backup kind: %q", ErrUnsupported, s)
	}
}

// Plan is the outcome of a recipe decision: which paths to copy into the
// staging directory, and the checkpoint to persist once staging succeeds.
type Plan struct {
	Stage      []string
	Checkpoint FileState
}

// Recipe decides, from the previous checkpoint and the current scan, what
// a single backup run stages and what baseline the next run diffs against.
type Recipe interface {
	Kind() RecipeKind
	Plan(previous, current FileState) Plan
}

// NewRecipe returns the recipe for the given kind.
func NewRecipe(kind RecipeKind) (Recipe, error) {
	switch kind {
	case RecipeFull:
		return fullRecipe{}, nil
	case RecipeIncremental:
		return incrementalRecipe{}, nil
	case RecipeDifferential:
		return differentialRecipe{}, nil
	default:
		return nil, fmt.Errorf("%w backup kind: %q", ErrUnsupported, kind)
	}
}

// fullRecipe stages everything and resets the checkpoint to the current
// scan. The previous checkpoint is ignored entirely.
type fullRecipe struct{}

func (fullRecipe) Kind() RecipeKind { return RecipeFull }

func (fullRecipe) Plan(_, current FileState) Plan {
	return Plan{Stage: current.Paths(), Checkpoint: current}
}

// incrementalRecipe stages paths that are new or modified since the
// previous run and advances the checkpoint, so each run diffs against the
// one before it.
type incrementalRecipe struct{}

func (incrementalRecipe) Kind() RecipeKind { return RecipeIncremental }

func (incrementalRecipe) Plan(previous, current FileState) Plan {
	return Plan{Stage: current.ChangedSince(previous), Checkpoint: current}
}

// differentialRecipe stages the same selection as incremental but never
// advances the checkpoint: every differential run diffs against the
// baseline left by the last full backup. Accidentally persisting the
// current state here would silently turn differential into incremental.
type differentialRecipe struct{}

func (differentialRecipe) Kind() RecipeKind { return RecipeDifferential }

func (differentialRecipe) Plan(previous, current FileState) Plan {
	return Plan{Stage: current.ChangedSince(previous), Checkpoint: previous}
}
